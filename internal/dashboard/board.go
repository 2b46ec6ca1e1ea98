package dashboard

import (
	"fmt"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/pkg/util/textutil"
)

// EmptyStateMessage is shown when the user has no tickets.
const EmptyStateMessage = "Nenhum chamado encontrado. Abra seu primeiro chamado!"

// DefaultPreviewRunes bounds the card description when no limit is given.
const DefaultPreviewRunes = 160

// UserView identifies the signed-in user in the header.
type UserView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
}

// PriorityBadge is the colored priority chip of a card.
type PriorityBadge struct {
	Priority domain.TicketPriority `json:"priority"`
	Label    string                `json:"label"`
	Class    string                `json:"class"`
}

// StatusView is the status icon and label of a card.
type StatusView struct {
	Status domain.TicketStatus `json:"status"`
	Label  string              `json:"label"`
	Icon   string              `json:"icon"`
}

// Card is one ticket as rendered in the list.
type Card struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    PriorityBadge `json:"priority"`
	Status      StatusView    `json:"status"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

// Notification is the confirmation shown after an action.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// View is the whole dashboard model.
type View struct {
	User         UserView              `json:"user"`
	Tickets      []Card                `json:"tickets"`
	EmptyState   string                `json:"empty_state,omitempty"`
	FAQ          []FAQEntry            `json:"faq"`
	Priorities   []domain.PriorityInfo `json:"priorities"`
	Notification *Notification         `json:"notification,omitempty"`
}

// CreationNotice confirms a newly registered ticket.
func CreationNotice(ticketID string) Notification {
	return Notification{
		Title:       "Chamado criado com sucesso!",
		Description: fmt.Sprintf("Chamado #%s foi registrado.", ticketID),
	}
}

// Board is the ordered ticket list of one dashboard, newest first.
type Board struct {
	tickets      []domain.Ticket
	previewRunes int
}

// NewBoard wraps tickets, which must already be ordered newest first.
func NewBoard(tickets []domain.Ticket, previewRunes int) *Board {
	if previewRunes <= 0 {
		previewRunes = DefaultPreviewRunes
	}
	b := &Board{previewRunes: previewRunes}
	for _, t := range tickets {
		b.Prepend(t)
	}
	// Prepend reversed the input; restore it.
	for i, j := 0, len(b.tickets)-1; i < j; i, j = i+1, j-1 {
		b.tickets[i], b.tickets[j] = b.tickets[j], b.tickets[i]
	}
	return b
}

// Prepend puts t first, dropping any earlier entry with the same id.
func (b *Board) Prepend(t domain.Ticket) {
	kept := make([]domain.Ticket, 0, len(b.tickets)+1)
	kept = append(kept, t)
	for _, existing := range b.tickets {
		if existing.ID != t.ID {
			kept = append(kept, existing)
		}
	}
	b.tickets = kept
}

// Len returns the number of tickets on the board.
func (b *Board) Len() int {
	return len(b.tickets)
}

// Cards renders every ticket.
func (b *Board) Cards() []Card {
	cards := make([]Card, 0, len(b.tickets))
	for _, t := range b.tickets {
		cards = append(cards, b.card(t))
	}
	return cards
}

func (b *Board) card(t domain.Ticket) Card {
	info := t.Priority.Info()
	display := t.Status.Display()
	return Card{
		ID:          t.ID,
		Title:       t.Title,
		Description: textutil.Truncate(t.Description, b.previewRunes),
		Priority: PriorityBadge{
			Priority: t.Priority,
			Label:    info.Label,
			Class:    info.BadgeClass,
		},
		Status: StatusView{
			Status: t.Status,
			Label:  display.Label,
			Icon:   display.Icon,
		},
		CreatedAt: FormatDate(t.CreatedAt),
		UpdatedAt: FormatDate(t.UpdatedAt),
	}
}

// View composes the dashboard for user.
func (b *Board) View(user UserView, faq []FAQEntry) View {
	view := View{
		User:       user,
		Tickets:    b.Cards(),
		FAQ:        faq,
		Priorities: domain.Priorities(),
	}
	if len(view.Tickets) == 0 {
		view.EmptyState = EmptyStateMessage
	}
	if view.FAQ == nil {
		view.FAQ = []FAQEntry{}
	}
	return view
}
