package intent

import (
	"testing"

	"github.com/spec-kit/support-desk/internal/domain"
)

func ownedTickets(ids ...int64) []domain.Ticket {
	tickets := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		tickets = append(tickets, domain.Ticket{ID: id, Status: domain.TicketStatusPending})
	}
	return tickets
}

func TestRulesReopenWithExplicitRef(t *testing.T) {
	d := NewRuleDetector()

	got := d.Detect("please reopen ticket #42, it is still broken", ownedTickets(42, 7))
	if got.Kind != domain.IntentReopenTicket {
		t.Fatalf("kind = %s, want reopen_ticket", got.Kind)
	}
	if got.TicketID != 42 {
		t.Fatalf("ticket id = %d, want 42", got.TicketID)
	}
	if got.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", got.Confidence)
	}
}

func TestRulesReopenUnownedRefFallsBackToMostRecent(t *testing.T) {
	d := NewRuleDetector()

	// 999 is not one of the caller's tickets, most recent one wins
	got := d.Detect("reopen ticket 999", ownedTickets(42, 7))
	if got.Kind != domain.IntentReopenTicket {
		t.Fatalf("kind = %s, want reopen_ticket", got.Kind)
	}
	if got.TicketID != 42 {
		t.Fatalf("ticket id = %d, want most recent 42", got.TicketID)
	}
}

func TestRulesReopenWithoutTicketsIsChat(t *testing.T) {
	d := NewRuleDetector()

	got := d.Detect("reopen my ticket", nil)
	if got.Kind != domain.IntentChat {
		t.Fatalf("kind = %s, want chat when there is nothing to reopen", got.Kind)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", got.Confidence)
	}
}

func TestRulesCreateStripsConnector(t *testing.T) {
	d := NewRuleDetector()

	got := d.Detect("create ticket for my broken laptop screen", nil)
	if got.Kind != domain.IntentCreateTicket {
		t.Fatalf("kind = %s, want create_ticket", got.Kind)
	}
	if got.Message != "my broken laptop screen" {
		t.Fatalf("message = %q, want connector stripped", got.Message)
	}
}

func TestRulesCreateShortRemainderUsesFullMessage(t *testing.T) {
	d := NewRuleDetector()

	full := "new ticket now"
	got := d.Detect(full, nil)
	if got.Kind != domain.IntentCreateTicket {
		t.Fatalf("kind = %s, want create_ticket", got.Kind)
	}
	if got.Message != full {
		t.Fatalf("message = %q, want full message %q", got.Message, full)
	}
}

func TestRulesUpdateCategory(t *testing.T) {
	d := NewRuleDetector()

	got := d.Detect("ticket #7 is in the wrong category, it should be billing", ownedTickets(42, 7))
	if got.Kind != domain.IntentUpdateCategory {
		t.Fatalf("kind = %s, want update_category", got.Kind)
	}
	if got.TicketID != 7 {
		t.Fatalf("ticket id = %d, want 7", got.TicketID)
	}
	if got.Category != domain.CategoryBilling {
		t.Fatalf("category = %s, want billing", got.Category)
	}
	if got.Confidence != 0.85 {
		t.Fatalf("confidence = %v, want 0.85", got.Confidence)
	}
}

func TestRulesBareNumberRef(t *testing.T) {
	d := NewRuleDetector()

	got := d.Detect("reassign 7 to the delivery team", ownedTickets(42, 7))
	if got.Kind != domain.IntentUpdateCategory {
		t.Fatalf("kind = %s, want update_category", got.Kind)
	}
	if got.TicketID != 7 {
		t.Fatalf("ticket id = %d, want 7 from bare number", got.TicketID)
	}
}

func TestRulesPlainQuestionIsChat(t *testing.T) {
	d := NewRuleDetector()

	got := d.Detect("what is the status of my order?", ownedTickets(42))
	if got.Kind != domain.IntentChat {
		t.Fatalf("kind = %s, want chat", got.Kind)
	}
}
