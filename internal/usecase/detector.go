package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// DetectorOptions are the engine-level scoring knobs that stay fixed across
// passes, as opposed to the per-pass DetectionConfig supplied by callers.
type DetectorOptions struct {
	RejectionLimit  int
	PriceRatioLimit float64
	LargeGroupSize  int
}

// withDefaults fills unset options with the stock values.
func (o DetectorOptions) withDefaults() DetectorOptions {
	if o.RejectionLimit <= 0 {
		o.RejectionLimit = domain.DefaultRejectionLimit
	}
	if o.PriceRatioLimit <= 0 {
		o.PriceRatioLimit = domain.DefaultPriceRatioLimit
	}
	if o.LargeGroupSize <= 0 {
		o.LargeGroupSize = domain.DefaultLargeGroupSize
	}
	return o
}

// LocalDetector runs detection passes in-process. It holds no state between
// runs: every pass is a pure function of the request (products, config,
// feedback history, confirmed memberships), which keeps passes reproducible
// and lets callers run them concurrently.
type LocalDetector struct {
	opts DetectorOptions
	log  *zap.SugaredLogger
}

// NewLocalDetector creates an in-process detector with the given knobs.
func NewLocalDetector(opts DetectorOptions, log *zap.SugaredLogger) *LocalDetector {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LocalDetector{opts: opts.withDefaults(), log: log}
}

// Run executes one detection pass over the request's products.
//
// When the pass exceeds its MaxAnalysisTime budget, the result built so far
// is returned flagged Incomplete together with an AnalysisTimeoutError, so
// callers never mistake partial output for a full pass. Cancellation of ctx
// abandons the pass entirely.
func (d *LocalDetector) Run(ctx context.Context, req domain.DetectionRequest) (*domain.DetectionResult, error) {
	cfg, err := resolveDetectionConfig(req.Config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var deadline time.Time
	if cfg.MaxAnalysisTime > 0 {
		deadline = start.Add(cfg.MaxAnalysisTime)
	}

	stats := buildFeedbackStats(req.History)

	grouped := make(map[string]bool, len(req.GroupedProductIDs))
	for _, id := range req.GroupedProductIDs {
		grouped[id] = true
	}

	// normalize candidates; already-grouped products and degenerate keys
	// never enter clustering
	byID := make(map[string]domain.Product, len(req.Products))
	keys := make([]domain.NormalizedKey, 0, len(req.Products))
	keyByID := make(map[string]domain.NormalizedKey, len(req.Products))
	for _, p := range req.Products {
		if grouped[p.ID] {
			continue
		}
		k := normalizeKey(p)
		if k.Empty() {
			continue
		}
		byID[p.ID] = p
		keys = append(keys, k)
		keyByID[p.ID] = k
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ProductID < keys[j].ProductID })

	pairs, incomplete, err := collectPairs(ctx, keys, cfg.Sensitivity, deadline)
	if err != nil {
		return nil, err
	}
	orderPairs(pairs)

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ProductID
	}
	clusters := clusterPairs(ids, pairs)

	roots := make([]string, 0, len(clusters))
	for root := range clusters {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	var suggestions []domain.Suggestion
	var patterns []domain.Pattern
	for _, root := range roots {
		if !deadline.IsZero() && time.Now().After(deadline) {
			incomplete = true
			break
		}

		members := clusters[root]
		if len(members) < cfg.MinGroupSize {
			continue
		}

		base := clusterBase(members, keyByID)
		baseKey := strings.Join(base, "-")
		rejections := stats.rejectionsFor(baseKey)
		suppressed := patternSuppressed(rejections, d.opts.RejectionLimit)

		products := make([]domain.Product, len(members))
		for i, id := range members {
			products[i] = byID[id]
		}
		confidence := scoreCluster(products, keyByID, base, d.opts, rejections)

		patterns = append(patterns, domain.Pattern{
			BaseKey:      baseKey,
			BaseTokens:   base,
			ProductCount: len(members),
			Confidence:   confidence,
			Rejections:   rejections,
			Suppressed:   suppressed,
		})

		if suppressed || confidence < cfg.MinConfidence {
			continue
		}

		suggestions = append(suggestions, domain.Suggestion{
			BaseKey:          baseKey,
			MemberProductIDs: members,
			Confidence:       confidence,
			Differences:      describeDifferences(members, keyByID, len(base)),
			Status:           domain.SuggestionPending,
		})
	}

	orderSuggestions(suggestions)
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		return patterns[i].BaseKey < patterns[j].BaseKey
	})

	result := &domain.DetectionResult{
		PassID:      uuid.NewString(),
		Suggestions: suggestions,
		Patterns:    patterns,
		Incomplete:  incomplete,
		Elapsed:     time.Since(start),
		GeneratedAt: time.Now().UTC(),
	}

	d.log.Debugw("detection pass finished",
		"passId", result.PassID,
		"candidates", len(keys),
		"suggestions", len(suggestions),
		"incomplete", incomplete,
		"elapsed", result.Elapsed,
	)

	if incomplete {
		return result, &domain.AnalysisTimeoutError{Budget: cfg.MaxAnalysisTime, Elapsed: time.Since(start)}
	}
	return result, nil
}

// resolveDetectionConfig applies defaults to unset fields and validates the
// rest. Callers get a ValidationError naming the offending field.
func resolveDetectionConfig(cfg domain.DetectionConfig) (domain.DetectionConfig, error) {
	if cfg.Sensitivity == 0 {
		cfg.Sensitivity = domain.DefaultSensitivity
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = domain.DefaultMinConfidence
	}
	if cfg.MinGroupSize == 0 {
		cfg.MinGroupSize = domain.DefaultMinGroupSize
	}

	if cfg.Sensitivity < 0.1 || cfg.Sensitivity > 1.0 {
		return cfg, domain.NewValidationError("sensitivity", "must be between 0.1 and 1.0")
	}
	if cfg.MinConfidence < 0.1 || cfg.MinConfidence > 1.0 {
		return cfg, domain.NewValidationError("minConfidence", "must be between 0.1 and 1.0")
	}
	if cfg.MinGroupSize < 2 {
		return cfg, domain.NewValidationError("minGroupSize", "must be at least 2")
	}
	if cfg.MaxAnalysisTime < 0 {
		return cfg, domain.NewValidationError("maxAnalysisTime", "must not be negative")
	}
	return cfg, nil
}
