package domain

// IntentKind discriminates the purpose of a chat turn.
type IntentKind string

const (
	IntentChat           IntentKind = "chat"
	IntentCreateTicket   IntentKind = "create_ticket"
	IntentUpdateCategory IntentKind = "update_category"
	IntentReopenTicket   IntentKind = "reopen_ticket"
)

// Intent is the classified purpose of one user turn. It is a transient
// value object produced fresh per turn and never persisted; only its
// effects survive as ticket mutations and the assistant's reply.
//
// Field validity per kind:
//   - chat: Confidence only
//   - create_ticket: Message holds the extracted ticket content
//   - update_category: TicketID and Category
//   - reopen_ticket: TicketID
type Intent struct {
	Kind       IntentKind
	Confidence float64
	TicketID   int64
	Category   Category
	Message    string
}
