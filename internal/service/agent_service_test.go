package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/routing"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// memoryTicketRepo is an in-memory TicketRepository for service tests.
type memoryTicketRepo struct {
	mu      sync.Mutex
	tickets map[int64]domain.Ticket
	nextID  int64
}

func newMemoryTicketRepo() *memoryTicketRepo {
	return &memoryTicketRepo{tickets: make(map[int64]domain.Ticket), nextID: 1}
}

func (r *memoryTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = r.nextID
	r.nextID++
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memoryTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memoryTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memoryTicketRepo) GetByIDAndOwner(_ context.Context, id int64, ownerID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.OwnerID != ownerID {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memoryTicketRepo) ListByOwnerAndStatus(_ context.Context, ownerID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[domain.TicketStatus]bool, len(statuses))
	for _, status := range statuses {
		allowed[status] = true
	}
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.OwnerID == ownerID && allowed[ticket.Status] {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryTicketRepo) ListByStatusCreatedBefore(_ context.Context, status domain.TicketStatus, cutoff time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == status && ticket.CreatedAt.Before(cutoff) {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryTicketRepo) WithTx(ctx context.Context, fn func(repository.TicketRepository) error) error {
	return fn(r)
}

func (r *memoryTicketRepo) seed(ticket domain.Ticket) domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == 0 {
		ticket.ID = r.nextID
	}
	if ticket.ID >= r.nextID {
		r.nextID = ticket.ID + 1
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	r.tickets[ticket.ID] = ticket
	return ticket
}

// fixedRouter is a deterministic CategoryRouter for tests.
type fixedRouter struct {
	category   domain.Category
	confidence float64
	warning    string
}

func (f *fixedRouter) Classify(_ context.Context, _ string) routing.Classification {
	return routing.Classification{Category: f.category, Confidence: f.confidence, Warning: f.warning}
}

func (f *fixedRouter) TeamFor(category domain.Category) string {
	return routing.TeamFor(category)
}

func (f *fixedRouter) ETAFor(category domain.Category) time.Duration {
	switch category {
	case domain.CategoryBilling:
		return 4 * time.Hour
	case domain.CategoryTechnical:
		return 8 * time.Hour
	case domain.CategoryDelivery:
		return 2 * time.Hour
	default:
		return 6 * time.Hour
	}
}

// recordingDispatcher captures published events in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestAgent(repo *memoryTicketRepo, router CategoryRouter, dispatcher events.Dispatcher, now time.Time) *AgentService {
	return NewAgentService(AgentDependencies{
		TicketRepo: repo,
		Router:     router,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Now:        func() time.Time { return now },
	})
}

func TestAgentCreateRoutesAndSetsETA(t *testing.T) {
	repo := newMemoryTicketRepo()
	dispatcher := &recordingDispatcher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agent := newTestAgent(repo, &fixedRouter{category: domain.CategoryBilling, confidence: 0.85}, dispatcher, now)

	result, err := agent.Create(context.Background(), "user-1", "Ada", "I was double charged")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Category != domain.CategoryBilling {
		t.Fatalf("category = %s, want billing", result.Category)
	}
	if result.AssignedTeam != "BillingTeam" {
		t.Fatalf("team = %s, want BillingTeam", result.AssignedTeam)
	}
	if result.Status != domain.TicketStatusPending {
		t.Fatalf("status = %s, want pending", result.Status)
	}
	wantETA := now.Add(4 * time.Hour)
	if result.ETA == nil || !result.ETA.Equal(wantETA) {
		t.Fatalf("eta = %v, want %v", result.ETA, wantETA)
	}

	stored, err := repo.GetByIDAndOwner(context.Background(), result.TicketID, "user-1")
	if err != nil {
		t.Fatalf("stored ticket missing: %v", err)
	}
	if stored.Confidence == nil || *stored.Confidence != 0.85 {
		t.Fatalf("stored confidence = %v, want 0.85", stored.Confidence)
	}
	if got := dispatcher.types(); len(got) != 1 || got[0] != events.EventTicketCreated {
		t.Fatalf("events = %v, want one ticket_created", got)
	}
}

func TestAgentCreateCarriesFallbackWarning(t *testing.T) {
	repo := newMemoryTicketRepo()
	agent := newTestAgent(repo, &fixedRouter{category: domain.CategoryGeneral, confidence: 0.75, warning: "classification service unavailable"}, &recordingDispatcher{}, time.Now())

	result, err := agent.Create(context.Background(), "user-1", "Ada", "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected the degradation warning to surface")
	}
}

func TestAgentRecategorizeResetsStatusAndETA(t *testing.T) {
	repo := newMemoryTicketRepo()
	dispatcher := &recordingDispatcher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oldETA := now.Add(-1 * time.Hour)
	seeded := repo.seed(domain.Ticket{
		OwnerID:            "user-1",
		Category:           domain.CategoryGeneral,
		AssignedTeam:       "GeneralSupport",
		Status:             domain.TicketStatusInProgress,
		ExpectedResolvedAt: &oldETA,
	})
	agent := newTestAgent(repo, &fixedRouter{category: domain.CategoryGeneral, confidence: 0.75}, dispatcher, now)

	result, err := agent.Recategorize(context.Background(), "user-1", seeded.ID, "Technical")
	if err != nil {
		t.Fatalf("Recategorize: %v", err)
	}
	if result.NewCategory != domain.CategoryTechnical {
		t.Fatalf("new category = %s, want technical (lowercased)", result.NewCategory)
	}
	if result.NewTeam != "TechSupport" {
		t.Fatalf("new team = %s, want TechSupport", result.NewTeam)
	}
	if result.NewStatus != domain.TicketStatusPending {
		t.Fatalf("new status = %s, want pending", result.NewStatus)
	}
	wantETA := now.Add(8 * time.Hour)
	if result.NewETA == nil || !result.NewETA.Equal(wantETA) {
		t.Fatalf("new eta = %v, want %v", result.NewETA, wantETA)
	}
	if result.OldStatus != domain.TicketStatusInProgress {
		t.Fatalf("old status = %s, want in_progress preserved in diff", result.OldStatus)
	}
	if got := dispatcher.types(); len(got) != 1 || got[0] != events.EventTicketRecategorized {
		t.Fatalf("events = %v, want one ticket_recategorized", got)
	}
}

func TestAgentRecategorizeInvalidCategory(t *testing.T) {
	repo := newMemoryTicketRepo()
	seeded := repo.seed(domain.Ticket{OwnerID: "user-1", Status: domain.TicketStatusPending})
	agent := newTestAgent(repo, &fixedRouter{}, &recordingDispatcher{}, time.Now())

	_, err := agent.Recategorize(context.Background(), "user-1", seeded.ID, "urgent")
	if !apperrors.IsCode(err, "INVALID_CATEGORY") {
		t.Fatalf("err = %v, want INVALID_CATEGORY", err)
	}
}

func TestAgentRecategorizeWrongOwner(t *testing.T) {
	repo := newMemoryTicketRepo()
	seeded := repo.seed(domain.Ticket{OwnerID: "user-1", Status: domain.TicketStatusPending})
	agent := newTestAgent(repo, &fixedRouter{}, &recordingDispatcher{}, time.Now())

	_, err := agent.Recategorize(context.Background(), "user-2", seeded.ID, "billing")
	if !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("err = %v, want NOT_FOUND for other owner's ticket", err)
	}
}

func TestAgentReopenResolvedTicket(t *testing.T) {
	repo := newMemoryTicketRepo()
	dispatcher := &recordingDispatcher{}
	eta := time.Now().Add(2 * time.Hour)
	seeded := repo.seed(domain.Ticket{
		OwnerID:            "user-1",
		Status:             domain.TicketStatusResolved,
		ExpectedResolvedAt: &eta,
	})
	agent := newTestAgent(repo, &fixedRouter{}, dispatcher, time.Now())

	result, err := agent.Reopen(context.Background(), "user-1", seeded.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if result.OldStatus != domain.TicketStatusResolved || result.NewStatus != domain.TicketStatusPending {
		t.Fatalf("transition = %s -> %s, want resolved -> pending", result.OldStatus, result.NewStatus)
	}

	stored, _ := repo.GetByIDAndOwner(context.Background(), seeded.ID, "user-1")
	if stored.ExpectedResolvedAt == nil || !stored.ExpectedResolvedAt.Equal(eta) {
		t.Fatalf("eta = %v, want untouched %v", stored.ExpectedResolvedAt, eta)
	}
	if got := dispatcher.types(); len(got) != 1 || got[0] != events.EventTicketReopened {
		t.Fatalf("events = %v, want one ticket_reopened", got)
	}
}

func TestAgentReopenPendingTicketRejected(t *testing.T) {
	repo := newMemoryTicketRepo()
	seeded := repo.seed(domain.Ticket{OwnerID: "user-1", Status: domain.TicketStatusPending})
	agent := newTestAgent(repo, &fixedRouter{}, &recordingDispatcher{}, time.Now())

	_, err := agent.Reopen(context.Background(), "user-1", seeded.ID)
	if !apperrors.IsCode(err, "INVALID_STATE") {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}
}

func TestAgentReopenMissingTicket(t *testing.T) {
	repo := newMemoryTicketRepo()
	agent := newTestAgent(repo, &fixedRouter{}, &recordingDispatcher{}, time.Now())

	_, err := agent.Reopen(context.Background(), "user-1", 404)
	if !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestAgentUpdateStatusCloseTicket(t *testing.T) {
	repo := newMemoryTicketRepo()
	dispatcher := &recordingDispatcher{}
	seeded := repo.seed(domain.Ticket{OwnerID: "user-1", Status: domain.TicketStatusInProgress})
	agent := newTestAgent(repo, &fixedRouter{}, dispatcher, time.Now())

	result, err := agent.UpdateStatus(context.Background(), "user-1", seeded.ID, "Closed")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if result.OldStatus != domain.TicketStatusInProgress || result.NewStatus != domain.TicketStatusClosed {
		t.Fatalf("transition = %s -> %s, want in_progress -> closed", result.OldStatus, result.NewStatus)
	}
	if got := dispatcher.types(); len(got) != 1 || got[0] != events.EventTicketStatusChanged {
		t.Fatalf("events = %v, want one ticket_status_changed", got)
	}
	if payload, ok := dispatcher.events[0].Payload.(events.TicketStatusChangedPayload); !ok || payload.Automatic {
		t.Fatalf("payload = %#v, want manual status change", dispatcher.events[0].Payload)
	}
}

func TestAgentUpdateStatusToPendingFollowsReopenRules(t *testing.T) {
	repo := newMemoryTicketRepo()
	dispatcher := &recordingDispatcher{}
	closed := repo.seed(domain.Ticket{ID: 1, OwnerID: "user-1", Status: domain.TicketStatusClosed})
	inProgress := repo.seed(domain.Ticket{ID: 2, OwnerID: "user-1", Status: domain.TicketStatusInProgress})
	agent := newTestAgent(repo, &fixedRouter{}, dispatcher, time.Now())

	result, err := agent.UpdateStatus(context.Background(), "user-1", closed.ID, domain.TicketStatusPending)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if result.NewStatus != domain.TicketStatusPending {
		t.Fatalf("new status = %s, want pending", result.NewStatus)
	}
	if got := dispatcher.types(); len(got) != 1 || got[0] != events.EventTicketReopened {
		t.Fatalf("events = %v, want one ticket_reopened", got)
	}

	_, err = agent.UpdateStatus(context.Background(), "user-1", inProgress.ID, domain.TicketStatusPending)
	if !apperrors.IsCode(err, "INVALID_STATE") {
		t.Fatalf("err = %v, want INVALID_STATE for in_progress -> pending", err)
	}
}

func TestAgentUpdateStatusRejectsNoopAndUnknown(t *testing.T) {
	repo := newMemoryTicketRepo()
	seeded := repo.seed(domain.Ticket{OwnerID: "user-1", Status: domain.TicketStatusResolved})
	agent := newTestAgent(repo, &fixedRouter{}, &recordingDispatcher{}, time.Now())

	_, err := agent.UpdateStatus(context.Background(), "user-1", seeded.ID, domain.TicketStatusResolved)
	if !apperrors.IsCode(err, "INVALID_STATE") {
		t.Fatalf("err = %v, want INVALID_STATE for same status", err)
	}

	_, err = agent.UpdateStatus(context.Background(), "user-1", seeded.ID, "escalated")
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("err = %v, want VALIDATION_FAILED for unknown status", err)
	}
}

func TestAgentPreviewDoesNotPersist(t *testing.T) {
	repo := newMemoryTicketRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agent := newTestAgent(repo, &fixedRouter{category: domain.CategoryDelivery, confidence: 0.8}, &recordingDispatcher{}, now)

	classification, team, eta := agent.Preview(context.Background(), "where is my package")
	if classification.Category != domain.CategoryDelivery {
		t.Fatalf("category = %s, want delivery", classification.Category)
	}
	if team != "DeliveryTeam" {
		t.Fatalf("team = %s, want DeliveryTeam", team)
	}
	if want := now.Add(2 * time.Hour); !eta.Equal(want) {
		t.Fatalf("eta = %v, want %v", eta, want)
	}
	if len(repo.tickets) != 0 {
		t.Fatalf("tickets persisted = %d, want none", len(repo.tickets))
	}
}
