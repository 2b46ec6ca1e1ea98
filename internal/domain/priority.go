package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// DefaultPriority is applied when the requester does not pick one.
const DefaultPriority = TicketPriorityMedium

// PriorityInfo is the user-facing metadata shown next to a priority.
type PriorityInfo struct {
	Priority         TicketPriority `json:"priority"`
	Label            string         `json:"label"`
	Description      string         `json:"description"`
	ShortDescription string         `json:"short_description"`
	BadgeClass       string         `json:"badge_class"`
	Icon             string         `json:"icon"`
	ResponseTime     time.Duration  `json:"-"`
}

// Ordered high to low, as presented to the requester.
var priorityCatalog = []PriorityInfo{
	{
		Priority:         TicketPriorityHigh,
		Label:            "Alta",
		Description:      "Problema crítico que impede o trabalho (resposta em até 2h)",
		ShortDescription: "Problema crítico (resposta em até 2h)",
		BadgeClass:       "status-badge-high",
		Icon:             "alert-triangle",
		ResponseTime:     2 * time.Hour,
	},
	{
		Priority:         TicketPriorityMedium,
		Label:            "Média",
		Description:      "Problema que afeta produtividade (resposta em até 8h)",
		ShortDescription: "Afeta produtividade (resposta em até 8h)",
		BadgeClass:       "status-badge-medium",
		Icon:             "clock",
		ResponseTime:     8 * time.Hour,
	},
	{
		Priority:         TicketPriorityLow,
		Label:            "Baixa",
		Description:      "Solicitação geral ou melhoria (resposta em até 24h)",
		ShortDescription: "Solicitação geral (resposta em até 24h)",
		BadgeClass:       "status-badge-low",
		Icon:             "minus",
		ResponseTime:     24 * time.Hour,
	},
}

// Priorities returns the metadata for every priority, highest first.
func Priorities() []PriorityInfo {
	out := make([]PriorityInfo, len(priorityCatalog))
	copy(out, priorityCatalog)
	return out
}

// ParsePriority converts user input into a TicketPriority.
// Empty input yields DefaultPriority.
func ParsePriority(raw string) (TicketPriority, error) {
	value := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return DefaultPriority, nil
	}
	if !value.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return value, nil
}

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Info returns the presentation metadata. Unknown values fall back to medium.
func (p TicketPriority) Info() PriorityInfo {
	for _, info := range priorityCatalog {
		if info.Priority == p {
			return info
		}
	}
	return priorityCatalog[1]
}

// ResponseTime is the target first-response time for the priority.
func (p TicketPriority) ResponseTime() time.Duration {
	return p.Info().ResponseTime
}
