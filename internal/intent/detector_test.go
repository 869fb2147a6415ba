package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

type fakeChatModel struct {
	content string
	err     error
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func newTestDetector(chatModel model.BaseChatModel) *Detector {
	return NewDetector(NewModelDetector(chatModel, zap.NewNop()), NewRuleDetector())
}

func TestDetectorModelHighConfidenceWins(t *testing.T) {
	chatModel := &fakeChatModel{content: `{"intent": "reopen_ticket", "ticket_id": 42, "confidence": 0.95}`}
	d := newTestDetector(chatModel)

	got := d.Detect(context.Background(), "open ticket 42 again", "", ownedTickets(42))
	if got.Kind != domain.IntentReopenTicket {
		t.Fatalf("kind = %s, want reopen_ticket", got.Kind)
	}
	if got.TicketID != 42 {
		t.Fatalf("ticket id = %d, want 42", got.TicketID)
	}
}

func TestDetectorWeakModelOverriddenByRules(t *testing.T) {
	chatModel := &fakeChatModel{content: `{"intent": "create_ticket", "confidence": 0.4}`}
	d := newTestDetector(chatModel)

	got := d.Detect(context.Background(), "please reopen ticket #7", "", ownedTickets(7))
	if got.Kind != domain.IntentReopenTicket {
		t.Fatalf("kind = %s, want rule reopen to override weak model result", got.Kind)
	}
	if got.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9 from rules", got.Confidence)
	}
}

func TestDetectorWeakModelStandsWhenRulesWeak(t *testing.T) {
	chatModel := &fakeChatModel{content: `{"intent": "create_ticket", "confidence": 0.4}`}
	d := newTestDetector(chatModel)

	got := d.Detect(context.Background(), "hmm, what do you think?", "", nil)
	if got.Kind != domain.IntentCreateTicket {
		t.Fatalf("kind = %s, want weak model result to stand", got.Kind)
	}
	if got.Confidence != 0.4 {
		t.Fatalf("confidence = %v, want 0.4", got.Confidence)
	}
}

func TestModelDetectorErrorIsChat(t *testing.T) {
	chatModel := &fakeChatModel{err: errors.New("connection refused")}
	d := NewModelDetector(chatModel, zap.NewNop())

	got := d.Detect(context.Background(), "reopen ticket 3", "")
	if got.Kind != domain.IntentChat {
		t.Fatalf("kind = %s, want chat on model error", got.Kind)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", got.Confidence)
	}
}

func TestModelDetectorParsesWrappedJSON(t *testing.T) {
	chatModel := &fakeChatModel{content: "Sure, here you go:\n" +
		`{"intent": "update_category", "ticket_id": 5, "category": "Billing", "confidence": 0.8}` +
		"\nLet me know if you need more."}
	d := NewModelDetector(chatModel, zap.NewNop())

	got := d.Detect(context.Background(), "", "")
	if got.Kind != domain.IntentUpdateCategory {
		t.Fatalf("kind = %s, want update_category", got.Kind)
	}
	if got.Category != domain.CategoryBilling {
		t.Fatalf("category = %s, want billing lowered", got.Category)
	}
	if got.TicketID != 5 {
		t.Fatalf("ticket id = %d, want 5", got.TicketID)
	}
}

func TestModelDetectorGarbageIsChat(t *testing.T) {
	chatModel := &fakeChatModel{content: "I think you want to create a ticket."}
	d := NewModelDetector(chatModel, zap.NewNop())

	got := d.Detect(context.Background(), "", "")
	if got.Kind != domain.IntentChat {
		t.Fatalf("kind = %s, want chat for unparseable output", got.Kind)
	}
}

func TestModelDetectorNilModelIsChat(t *testing.T) {
	d := NewModelDetector(nil, zap.NewNop())

	got := d.Detect(context.Background(), "create ticket please", "")
	if got.Kind != domain.IntentChat || got.Confidence != 1.0 {
		t.Fatalf("got %+v, want chat/1.0 with no model", got)
	}
}
