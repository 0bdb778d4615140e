package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// detectionCacheKey is where the latest committed pass result is cached.
const detectionCacheKey = "detection:latest"

// DetectionServiceOptions tune pass scheduling around the detector.
type DetectionServiceOptions struct {
	// DebounceInterval is the minimum spacing between passes; triggers
	// inside the window are served the last committed result.
	DebounceInterval time.Duration
	// CacheTTL bounds how long a committed result stays in the cache.
	CacheTTL time.Duration
	// Defaults are applied to pass config fields the caller left unset.
	Defaults domain.DetectionConfig
}

// DetectionService schedules detection passes and owns the suggestion
// registry of the latest committed pass.
//
// Passes supersede each other: triggering a new pass cancels the one in
// flight, and a superseded pass commits nothing even if it manages to
// finish. The registry therefore only ever reflects the newest pass.
type DetectionService struct {
	catalog  domain.CatalogRepository
	groups   domain.GroupStore
	feedback domain.FeedbackSink
	detector domain.Detector
	cache    domain.CacheRepository
	log      *zap.SugaredLogger

	defaults domain.DetectionConfig
	cacheTTL time.Duration
	limiter  *rate.Limiter

	mu         sync.Mutex // guards generation and cancel
	generation uint64
	cancel     context.CancelFunc

	resultMu sync.RWMutex // guards latest and registry
	latest   *domain.DetectionResult
	order    []string
	registry map[string]*suggestionRecord
}

// suggestionRecord tracks one suggestion of the current pass together with
// the group it produced once accepted.
type suggestionRecord struct {
	suggestion domain.Suggestion
	groupID    string
}

// NewDetectionService wires the detection pipeline to its collaborators.
// The cache is optional; everything else is required.
func NewDetectionService(
	catalog domain.CatalogRepository,
	groups domain.GroupStore,
	feedback domain.FeedbackSink,
	detector domain.Detector,
	cache domain.CacheRepository,
	log *zap.SugaredLogger,
	opts DetectionServiceOptions,
) *DetectionService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	interval := opts.DebounceInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DetectionService{
		catalog:  catalog,
		groups:   groups,
		feedback: feedback,
		detector: detector,
		cache:    cache,
		log:      log,
		defaults: opts.Defaults,
		cacheTTL: ttl,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		registry: make(map[string]*suggestionRecord),
	}
}

// Run triggers a detection pass. Triggers inside the debounce window return
// the last committed result instead of starting a new pass unless force is
// set. A trigger that finds another pass in flight cancels it; the newer
// trigger always wins.
func (s *DetectionService) Run(ctx context.Context, overrides domain.DetectionConfig, force bool) (*domain.DetectionResult, error) {
	if !force && !s.limiter.Allow() {
		if last, err := s.LatestResult(); err == nil {
			s.log.Debugw("detection debounced, serving last result", "passId", last.PassID)
			return last, nil
		}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	passCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	// the three pass inputs are independent reads; load them concurrently
	var (
		products []domain.Product
		groups   []domain.VariantGroup
		history  []domain.FeedbackEvent
	)
	g, gctx := errgroup.WithContext(passCtx)
	g.Go(func() error {
		var err error
		if products, err = s.catalog.FetchProducts(gctx); err != nil {
			return fmt.Errorf("fetch catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if groups, err = s.groups.ListGroups(gctx); err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if history, err = s.feedback.History(gctx); err != nil {
			return fmt.Errorf("load feedback history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.passError(gen, err)
	}

	var groupedIDs []string
	for _, grp := range groups {
		groupedIDs = append(groupedIDs, grp.MemberProductIDs...)
	}

	req := domain.DetectionRequest{
		Products:          products,
		Config:            s.mergeConfig(overrides),
		History:           history,
		GroupedProductIDs: groupedIDs,
	}

	result, runErr := s.detector.Run(passCtx, req)
	if runErr != nil && !domain.IsAnalysisTimeout(runErr) {
		return nil, s.passError(gen, runErr)
	}

	if !s.commit(gen, result) {
		return nil, domain.ErrPassSuperseded
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, detectionCacheKey, result, s.cacheTTL); err != nil {
			s.log.Warnw("failed to cache detection result", "error", err)
		}
	}

	s.log.Infow("detection pass committed",
		"passId", result.PassID,
		"suggestions", len(result.Suggestions),
		"incomplete", result.Incomplete,
	)
	return result, runErr
}

// passError distinguishes a pass that failed on its own from one that was
// cancelled because a newer trigger superseded it.
func (s *DetectionService) passError(gen uint64, err error) error {
	s.mu.Lock()
	superseded := gen != s.generation
	s.mu.Unlock()
	if superseded {
		return domain.ErrPassSuperseded
	}
	return err
}

// commit installs the pass result if, and only if, the pass is still the
// newest one. Superseded results are discarded wholesale so no partial
// suggestions from an aborted pass can ever be acted upon.
func (s *DetectionService) commit(gen uint64, result *domain.DetectionResult) bool {
	s.mu.Lock()
	current := gen == s.generation
	s.mu.Unlock()
	if !current {
		return false
	}

	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	s.latest = result
	s.order = s.order[:0]
	s.registry = make(map[string]*suggestionRecord, len(result.Suggestions))
	for _, sg := range result.Suggestions {
		s.order = append(s.order, sg.ID)
		s.registry[sg.ID] = &suggestionRecord{suggestion: sg}
	}
	return true
}

// mergeConfig folds the service-level defaults into fields the caller left
// unset; full spec defaults are applied later by the detector.
func (s *DetectionService) mergeConfig(cfg domain.DetectionConfig) domain.DetectionConfig {
	if cfg.Sensitivity == 0 {
		cfg.Sensitivity = s.defaults.Sensitivity
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = s.defaults.MinConfidence
	}
	if cfg.MinGroupSize == 0 {
		cfg.MinGroupSize = s.defaults.MinGroupSize
	}
	if cfg.MaxAnalysisTime == 0 {
		cfg.MaxAnalysisTime = s.defaults.MaxAnalysisTime
	}
	return cfg
}

// LatestResult returns the newest committed pass with current suggestion
// statuses, or ErrNoDetectionResult before the first pass commits.
func (s *DetectionService) LatestResult() (*domain.DetectionResult, error) {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	if s.latest == nil {
		return nil, domain.ErrNoDetectionResult
	}
	out := *s.latest
	out.Suggestions = s.snapshotLocked()
	return &out, nil
}

// Suggestions lists the current pass's suggestions in their pass order.
func (s *DetectionService) Suggestions() ([]domain.Suggestion, error) {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	if s.latest == nil {
		return nil, domain.ErrNoDetectionResult
	}
	return s.snapshotLocked(), nil
}

func (s *DetectionService) snapshotLocked() []domain.Suggestion {
	out := make([]domain.Suggestion, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.registry[id]; ok {
			out = append(out, rec.suggestion)
		}
	}
	return out
}

// Suggestion returns one suggestion of the current pass by ID.
func (s *DetectionService) Suggestion(id string) (*domain.Suggestion, error) {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	if s.latest == nil {
		return nil, domain.ErrNoDetectionResult
	}
	rec, ok := s.registry[id]
	if !ok {
		return nil, domain.ErrSuggestionNotFound
	}
	sg := rec.suggestion
	return &sg, nil
}

// MarkAccepted records the terminal accepted state for a suggestion along
// with the group it became. Accepting an already-accepted suggestion is a
// no-op; accepting a rejected one fails validation.
func (s *DetectionService) MarkAccepted(id, groupID string) error {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	rec, ok := s.registry[id]
	if !ok {
		return domain.ErrSuggestionNotFound
	}
	switch rec.suggestion.Status {
	case domain.SuggestionAccepted:
		return nil
	case domain.SuggestionRejected:
		return domain.NewValidationError("suggestion", "already rejected")
	}
	rec.suggestion.Status = domain.SuggestionAccepted
	rec.groupID = groupID
	return nil
}

// MarkRejected records the terminal rejected state for a suggestion.
func (s *DetectionService) MarkRejected(id string) error {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	rec, ok := s.registry[id]
	if !ok {
		return domain.ErrSuggestionNotFound
	}
	switch rec.suggestion.Status {
	case domain.SuggestionRejected:
		return nil
	case domain.SuggestionAccepted:
		return domain.NewValidationError("suggestion", "already accepted")
	}
	rec.suggestion.Status = domain.SuggestionRejected
	return nil
}

// AcceptedGroupID returns the group a suggestion was accepted into.
func (s *DetectionService) AcceptedGroupID(id string) (string, bool) {
	s.resultMu.RLock()
	defer s.resultMu.RUnlock()
	rec, ok := s.registry[id]
	if !ok || rec.groupID == "" {
		return "", false
	}
	return rec.groupID, true
}
