package routing

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
)

// Labeler maps free text to one of the fixed category labels. The
// production implementation calls an external chat model; failures are
// handled entirely inside the Router.
type Labeler interface {
	Label(ctx context.Context, text string) (domain.Category, error)
}

// Classification is the routing verdict for a message.
type Classification struct {
	Category   domain.Category
	Confidence float64
	Warning    string
}

// Router classifies support messages and resolves the derived team and
// ETA for each category. Classify never fails: labeler errors degrade to
// keyword matching.
type Router struct {
	labeler Labeler
	eta     ETATable
	logger  *zap.Logger
	metrics *observability.Metrics

	maxRetries int
	baseDelay  time.Duration
}

// NewRouter constructs the router.
func NewRouter(labeler Labeler, cfg config.RoutingConfig, logger *zap.Logger, metrics *observability.Metrics) *Router {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Router{
		labeler:    labeler,
		eta:        NewETATable(cfg),
		logger:     logger,
		metrics:    metrics,
		maxRetries: maxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}
}

// Classify routes text to a category with a confidence score. Rate-limit
// errors from the labeler are retried with exponential backoff; quota and
// billing errors skip retries; any terminal failure falls back to keyword
// matching with a warning.
func (r *Router) Classify(ctx context.Context, text string) Classification {
	if r.labeler == nil {
		return r.classifyFallback(text, "labeler not configured")
	}

	delay := r.baseDelay
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		category, err := r.labeler.Label(ctx, text)
		if err == nil {
			if !domain.IsValidCategory(category) {
				category = domain.CategoryGeneral
			}
			r.metrics.RecordClassification(string(category), "model")
			return Classification{
				Category:   category,
				Confidence: confidenceFor(text, category),
			}
		}

		if isQuotaError(err) {
			r.logger.Warn("labeler quota exhausted, using fallback", zap.Error(err))
			return r.classifyFallback(text, "classification quota exhausted")
		}
		if isRateLimited(err) && attempt < r.maxRetries-1 {
			r.logger.Warn("labeler rate limited, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if sleepErr := sleepContext(ctx, delay); sleepErr != nil {
				return r.classifyFallback(text, "classification cancelled")
			}
			delay *= 2
			continue
		}

		r.logger.Warn("labeler unavailable, using fallback", zap.Error(err))
		return r.classifyFallback(text, "classification service unavailable")
	}

	return r.classifyFallback(text, "classification retries exhausted")
}

// TeamFor returns the team assigned to the category.
func (r *Router) TeamFor(category domain.Category) string {
	return TeamFor(category)
}

// ETAFor returns the expected resolution window for the category.
func (r *Router) ETAFor(category domain.Category) time.Duration {
	return r.eta.For(category)
}

func (r *Router) classifyFallback(text, warning string) Classification {
	category, confidence := fallbackClassify(text)
	r.metrics.RecordClassification(string(category), "fallback")
	return Classification{Category: category, Confidence: confidence, Warning: warning}
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "insufficient_quota") ||
		strings.Contains(msg, "billing")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
