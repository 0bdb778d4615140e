package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

const (
	maxAttempts    = 3
	defaultTimeout = 30 * time.Second
)

// Options configures the remote detection client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing calls; Burst allows short spikes.
	RequestsPerSecond float64
	Burst             int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	return o
}

// Detector calls an external analysis service that accepts the same
// detection request shape as the in-process engine. Callers select it
// through configuration and cannot otherwise tell the two apart.
type Detector struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	rateLimiter *rate.Limiter
	log         *zap.SugaredLogger
}

// NewDetector creates a remote detection client.
func NewDetector(opts Options, log *zap.SugaredLogger) *Detector {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Detector{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		baseURL:     opts.BaseURL,
		apiKey:      opts.APIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		log:         log,
	}
}

// Run posts one detection request and decodes the pass result. Transient
// failures (transport errors, 429, 5xx) are retried with exponential
// backoff; an incomplete result carries an AnalysisTimeoutError exactly
// like the local engine's.
func (d *Detector) Run(ctx context.Context, req domain.DetectionRequest) (*domain.DetectionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode detection request: %w", err)
	}
	reqURL := d.baseURL + "/v1/detection/run"

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := d.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		result, retry, err := d.post(ctx, reqURL, payload)
		if err == nil {
			if result.Incomplete {
				return result, &domain.AnalysisTimeoutError{
					Budget:  req.Config.MaxAnalysisTime,
					Elapsed: result.Elapsed,
				}
			}
			return result, nil
		}
		if !retry {
			return result, err
		}
		lastErr = err
		d.log.Warnw("remote detection attempt failed",
			"attempt", attempt,
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
	}
	return nil, lastErr
}

// post performs one attempt. retry reports whether the failure is worth
// another try.
func (d *Detector) post(ctx context.Context, reqURL string, payload []byte) (result *domain.DetectionResult, retry bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrDetectorUnavailable, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var res domain.DetectionResult
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, false, fmt.Errorf("decode detection result: %w", err)
		}
		return &res, false, nil

	case resp.StatusCode == http.StatusBadRequest:
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
			return nil, false, domain.NewValidationError("request", string(body))
		}
		return nil, false, domain.NewValidationError(eb.Field, eb.Error)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("%w: status %d", domain.ErrDetectorUnavailable, resp.StatusCode)

	default:
		return nil, false, fmt.Errorf("%w: status %d", domain.ErrDetectorUnavailable, resp.StatusCode)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func exponentialBackoff(attempt int) time.Duration {
	return 500 * time.Millisecond << (attempt - 1)
}
