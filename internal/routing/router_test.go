package routing

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
)

func testRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		BillingEtaHours:   4,
		TechnicalEtaHours: 8,
		DeliveryEtaHours:  2,
		GeneralEtaHours:   6,
		MaxRetries:        3,
		RetryBaseDelay:    0,
	}
}

type fakeLabeler struct {
	results []labelResult
	calls   int
}

type labelResult struct {
	category domain.Category
	err      error
}

func (f *fakeLabeler) Label(_ context.Context, _ string) (domain.Category, error) {
	result := f.results[f.calls]
	if f.calls < len(f.results)-1 {
		f.calls++
	}
	return result.category, result.err
}

func newTestRouter(labeler Labeler) *Router {
	return NewRouter(labeler, testRoutingConfig(), zap.NewNop(), observability.NewMetrics())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFallbackClassify(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		category   domain.Category
		confidence float64
	}{
		{"billing keywords", "I was charged twice, please refund my payment", domain.CategoryBilling, 0.85},
		{"technical keywords", "the login page shows an error", domain.CategoryTechnical, 0.8},
		{"delivery keywords", "my package tracking says it never shipped", domain.CategoryDelivery, 0.85},
		{"no keywords", "hello there", domain.CategoryGeneral, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			category, confidence := fallbackClassify(tc.text)
			if category != tc.category {
				t.Fatalf("category = %s, want %s", category, tc.category)
			}
			if !almostEqual(confidence, tc.confidence) {
				t.Fatalf("confidence = %v, want %v", confidence, tc.confidence)
			}
		})
	}
}

func TestConfidenceForCapped(t *testing.T) {
	// eight matching keywords would score 1.1 uncapped
	text := "payment invoice charge refund billing account subscription fee"
	got := confidenceFor(text, domain.CategoryBilling)
	if !almostEqual(got, 0.95) {
		t.Fatalf("confidence = %v, want capped 0.95", got)
	}
}

func TestConfidenceForNoMatches(t *testing.T) {
	got := confidenceFor("totally unrelated text", domain.CategoryBilling)
	if !almostEqual(got, 0.75) {
		t.Fatalf("confidence = %v, want default 0.75", got)
	}
}

func TestClassifyUsesLabeler(t *testing.T) {
	router := newTestRouter(&fakeLabeler{results: []labelResult{{category: domain.CategoryDelivery}}})

	got := router.Classify(context.Background(), "where is my package")
	if got.Category != domain.CategoryDelivery {
		t.Fatalf("category = %s, want delivery", got.Category)
	}
	if got.Warning != "" {
		t.Fatalf("unexpected warning %q", got.Warning)
	}
}

func TestClassifyRetriesRateLimit(t *testing.T) {
	labeler := &fakeLabeler{results: []labelResult{
		{err: errors.New("429 too many requests")},
		{category: domain.CategoryBilling},
	}}
	router := newTestRouter(labeler)

	got := router.Classify(context.Background(), "refund please")
	if got.Category != domain.CategoryBilling {
		t.Fatalf("category = %s, want billing after retry", got.Category)
	}
	if labeler.calls != 1 {
		t.Fatalf("labeler retried %d times, want 1", labeler.calls)
	}
}

func TestClassifyRateLimitExhaustsToFallback(t *testing.T) {
	labeler := &fakeLabeler{results: []labelResult{
		{err: errors.New("rate limit exceeded")},
	}}
	router := newTestRouter(labeler)

	got := router.Classify(context.Background(), "my invoice is wrong")
	if got.Category != domain.CategoryBilling {
		t.Fatalf("category = %s, want billing from fallback", got.Category)
	}
	if got.Warning == "" {
		t.Fatal("expected a degradation warning")
	}
}

func TestClassifyQuotaSkipsRetries(t *testing.T) {
	labeler := &fakeLabeler{results: []labelResult{
		{err: errors.New("insufficient_quota: billing hard limit reached")},
	}}
	router := newTestRouter(labeler)

	got := router.Classify(context.Background(), "random note")
	if labeler.calls != 0 {
		t.Fatalf("labeler called %d extra times, quota errors must not retry", labeler.calls)
	}
	if got.Category != domain.CategoryGeneral {
		t.Fatalf("category = %s, want general fallback", got.Category)
	}
	if got.Warning == "" {
		t.Fatal("expected a degradation warning")
	}
}

func TestClassifyNoLabeler(t *testing.T) {
	router := newTestRouter(nil)

	got := router.Classify(context.Background(), "error in the software")
	if got.Category != domain.CategoryTechnical {
		t.Fatalf("category = %s, want technical", got.Category)
	}
	if got.Warning == "" {
		t.Fatal("expected a degradation warning")
	}
}

func TestClassifyInvalidLabelDefaultsGeneral(t *testing.T) {
	router := newTestRouter(&fakeLabeler{results: []labelResult{{category: "urgent"}}})

	got := router.Classify(context.Background(), "anything")
	if got.Category != domain.CategoryGeneral {
		t.Fatalf("category = %s, want general for unknown label", got.Category)
	}
}

func TestTeamForTotal(t *testing.T) {
	want := map[domain.Category]string{
		domain.CategoryBilling:   "BillingTeam",
		domain.CategoryTechnical: "TechSupport",
		domain.CategoryDelivery:  "DeliveryTeam",
		domain.CategoryGeneral:   "GeneralSupport",
	}
	for category, team := range want {
		if got := TeamFor(category); got != team {
			t.Fatalf("TeamFor(%s) = %s, want %s", category, got, team)
		}
	}
	if got := TeamFor("nonsense"); got != "GeneralSupport" {
		t.Fatalf("TeamFor(nonsense) = %s, want GeneralSupport", got)
	}
}

func TestETATable(t *testing.T) {
	table := NewETATable(testRoutingConfig())
	if got := table.For(domain.CategoryBilling); got.Hours() != 4 {
		t.Fatalf("billing ETA = %v, want 4h", got)
	}
	if got := table.For("nonsense"); got.Hours() != 6 {
		t.Fatalf("unknown category ETA = %v, want general 6h", got)
	}
}

func TestExtractCategory(t *testing.T) {
	if got := extractCategory("The category is Billing."); got != domain.CategoryBilling {
		t.Fatalf("got %s, want billing", got)
	}
	if got := extractCategory("no idea"); got != domain.CategoryGeneral {
		t.Fatalf("got %s, want general", got)
	}
}
