// Package scheduler advances ticket status based on elapsed time since
// creation: pending tickets move to in_progress after T1 and in_progress
// tickets to resolved after T2, both measured from the original creation
// time. Closed tickets are never touched.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Scheduler is the single per-process lifecycle sweeper. Start and Stop
// are idempotent; the sweep itself is safe to run concurrently with
// user-triggered mutations.
type Scheduler struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.SchedulerConfig
	now        func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// Dependencies bundles requirements for the scheduler.
type Dependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// New constructs the scheduler.
func New(cfg config.SchedulerConfig, deps Dependencies) *Scheduler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		cfg:        cfg,
		now:        now,
	}
}

// Start launches the periodic sweep loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)
	s.logger.Info("lifecycle scheduler started", zap.Duration("interval", s.cfg.Interval))
}

// Stop terminates the sweep loop and waits for the in-flight sweep to
// finish. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("lifecycle scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep. Each ticket commits independently;
// one ticket's failure never blocks the rest, and on restart eligibility
// is re-derived from current timestamps so catch-up is implicit.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.now()
	mutations := 0

	moved, err := s.transitionBatch(ctx,
		domain.TicketStatusPending,
		domain.TicketStatusInProgress,
		now.Add(-s.cfg.InProgressAfter))
	if err != nil {
		return err
	}
	mutations += moved

	moved, err = s.transitionBatch(ctx,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		now.Add(-s.cfg.ResolvedAfter))
	if err != nil {
		return err
	}
	mutations += moved

	s.metrics.RecordSweep(mutations)
	return nil
}

func (s *Scheduler) transitionBatch(ctx context.Context, from, to domain.TicketStatus, cutoff time.Time) (int, error) {
	eligible, err := s.tickets.ListByStatusCreatedBefore(ctx, from, cutoff)
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range eligible {
		if err := s.transitionOne(ctx, eligible[i].ID, from, to); err != nil {
			s.logger.Error("ticket transition failed",
				zap.Int64("ticket_id", eligible[i].ID),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
				zap.Error(err))
			continue
		}
		moved++
	}
	return moved, nil
}

func (s *Scheduler) transitionOne(ctx context.Context, ticketID int64, from, to domain.TicketStatus) error {
	var ticket *domain.Ticket
	err := s.tickets.WithTx(ctx, func(repo repository.TicketRepository) error {
		current, err := repo.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		// a concurrent user action may have moved the ticket already;
		// skipping here avoids double notification
		if current.Status != from {
			return nil
		}
		current.Status = to
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		ticket = current
		return nil
	})
	if err != nil || ticket == nil {
		return err
	}

	s.logger.Info("ticket transitioned",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketStatusChanged,
			TicketID:  ticket.ID,
			OwnerID:   ticket.OwnerID,
			Timestamp: s.now(),
			Payload: events.TicketStatusChangedPayload{
				Customer:  ticket.Customer,
				Message:   ticket.Message,
				OldStatus: from,
				NewStatus: to,
				Automatic: true,
			},
		})
	}
	return nil
}
