package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

var reopenKeywords = []string{
	"reopen", "open again", "not resolved", "still have issue",
	"not fixed", "still broken", "issue persists", "reopen ticket",
}

var createKeywords = []string{
	"create ticket", "new ticket", "open ticket", "submit ticket",
	"file a ticket", "report issue", "i need help", "i have a problem",
	"create a ticket", "make a ticket", "raise a ticket",
}

var changeKeywords = []string{
	"change category", "change team", "wrong category",
	"should be", "this is actually", "reassign", "move to",
}

var categoryKeywords = map[domain.Category][]string{
	domain.CategoryBilling:   {"billing", "payment", "invoice", "charge", "refund", "billing team"},
	domain.CategoryTechnical: {"technical", "tech", "bug", "error", "software", "technical team"},
	domain.CategoryDelivery:  {"delivery", "shipping", "order", "package", "delivery team"},
	domain.CategoryGeneral:   {"general", "other", "general team"},
}

var connectorPrefix = regexp.MustCompile(`(?i)^(for|about|regarding|concerning|with)\s+`)

// ticketRefPatterns are tried in priority order; the first match that
// names a ticket the caller actually owns wins.
var ticketRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ticket\s*#?\s*(\d+)`),
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`(?i)ticket\s+(\d+)`),
	regexp.MustCompile(`(\d+)`),
}

// minTicketMessageLen guards against degenerate tickets when connector
// stripping eats most of the message.
const minTicketMessageLen = 10

// RuleDetector is the deterministic keyword-based intent detector used
// when the model-based detector has no strong signal.
type RuleDetector struct{}

// NewRuleDetector constructs the detector.
func NewRuleDetector() *RuleDetector {
	return &RuleDetector{}
}

// Detect derives an intent from keyword families. tickets must be the
// caller's own tickets, most recent first; numeric references that do
// not match any of them fall back to the most recent ticket.
func (d *RuleDetector) Detect(message string, tickets []domain.Ticket) domain.Intent {
	lower := strings.ToLower(message)

	if containsAny(lower, reopenKeywords) {
		if ticketID, ok := resolveTicketRef(message, tickets); ok {
			return domain.Intent{
				Kind:       domain.IntentReopenTicket,
				TicketID:   ticketID,
				Confidence: 0.9,
			}
		}
	}

	for _, keyword := range createKeywords {
		idx := strings.Index(lower, keyword)
		if idx < 0 {
			continue
		}
		content := strings.TrimSpace(message[idx+len(keyword):])
		content = strings.TrimSpace(connectorPrefix.ReplaceAllString(content, ""))
		if len(content) < minTicketMessageLen {
			content = message
		}
		return domain.Intent{
			Kind:       domain.IntentCreateTicket,
			Message:    content,
			Confidence: 0.9,
		}
	}

	if containsAny(lower, changeKeywords) {
		for _, category := range domain.Categories {
			if !containsAny(lower, categoryKeywords[category]) {
				continue
			}
			if ticketID, ok := resolveTicketRef(message, tickets); ok {
				return domain.Intent{
					Kind:       domain.IntentUpdateCategory,
					TicketID:   ticketID,
					Category:   category,
					Confidence: 0.85,
				}
			}
		}
	}

	return domain.Intent{Kind: domain.IntentChat, Confidence: 1.0}
}

// resolveTicketRef extracts a ticket reference from the message,
// validated against the caller's tickets. Unmatched or out-of-range
// references resolve to the most recent ticket.
func resolveTicketRef(message string, tickets []domain.Ticket) (int64, bool) {
	for _, pattern := range ticketRefPatterns {
		match := pattern.FindStringSubmatch(message)
		if match == nil {
			continue
		}
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		for _, ticket := range tickets {
			if ticket.ID == id {
				return id, true
			}
		}
	}

	if len(tickets) > 0 {
		return tickets[0].ID, true
	}
	return 0, false
}

func containsAny(lower string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
