package routing

import (
	"time"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

// teamTable maps every category to its assigned team. Total over the
// fixed label set; unknown categories resolve to GeneralSupport.
var teamTable = map[domain.Category]string{
	domain.CategoryBilling:   "BillingTeam",
	domain.CategoryTechnical: "TechSupport",
	domain.CategoryDelivery:  "DeliveryTeam",
	domain.CategoryGeneral:   "GeneralSupport",
}

// TeamFor returns the team responsible for the category.
func TeamFor(category domain.Category) string {
	if team, ok := teamTable[category]; ok {
		return team
	}
	return "GeneralSupport"
}

// ETATable holds per-category resolution windows.
type ETATable struct {
	durations map[domain.Category]time.Duration
}

// NewETATable builds the table from configuration.
func NewETATable(cfg config.RoutingConfig) ETATable {
	return ETATable{durations: map[domain.Category]time.Duration{
		domain.CategoryBilling:   time.Duration(cfg.BillingEtaHours) * time.Hour,
		domain.CategoryTechnical: time.Duration(cfg.TechnicalEtaHours) * time.Hour,
		domain.CategoryDelivery:  time.Duration(cfg.DeliveryEtaHours) * time.Hour,
		domain.CategoryGeneral:   time.Duration(cfg.GeneralEtaHours) * time.Hour,
	}}
}

// For returns the expected resolution window for the category; unknown
// categories get the general window.
func (t ETATable) For(category domain.Category) time.Duration {
	if d, ok := t.durations[category]; ok {
		return d
	}
	return t.durations[domain.CategoryGeneral]
}

// confidenceKeywords feeds the confidence score for a classified category.
var confidenceKeywords = map[domain.Category][]string{
	domain.CategoryBilling:   {"payment", "invoice", "charge", "refund", "billing", "account", "subscription", "fee"},
	domain.CategoryTechnical: {"error", "bug", "issue", "problem", "technical", "software", "hardware", "login", "access"},
	domain.CategoryDelivery:  {"shipping", "delivery", "order", "tracking", "package", "shipment", "arrive"},
	domain.CategoryGeneral:   {"question", "inquiry", "help", "information"},
}

// fallbackKeywords is the wider set used when the labeler is unavailable
// and classification runs on keywords alone.
var fallbackKeywords = map[domain.Category][]string{
	domain.CategoryBilling:   {"payment", "invoice", "charge", "refund", "billing", "account", "subscription", "fee", "bill", "paid", "money"},
	domain.CategoryTechnical: {"error", "bug", "issue", "problem", "technical", "software", "hardware", "login", "access", "crash", "broken", "not working"},
	domain.CategoryDelivery:  {"shipping", "delivery", "order", "tracking", "package", "shipment", "arrive", "shipped", "dispatch", "transit"},
	domain.CategoryGeneral:   {"question", "inquiry", "help", "information", "support"},
}
