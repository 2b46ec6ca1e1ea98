package domain

import (
	"fmt"
	"time"
)

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:           {TicketStatusWaitingAI, TicketStatusAssignedToTech},
	TicketStatusWaitingAI:      {TicketStatusAIResponded, TicketStatusAssignedToTech},
	TicketStatusAIResponded:    {TicketStatusWaitingAI, TicketStatusAssignedToTech, TicketStatusResolved},
	TicketStatusAssignedToTech: {TicketStatusInProgress},
	TicketStatusInProgress:     {TicketStatusResolved},
	TicketStatusResolved:       {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:         {},
}

// CanTransition reports whether the table allows current -> next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s TicketStatus) []TicketStatus {
	next := allowedTransitions[s]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}

// Transition moves the ticket to next on behalf of actor, enforcing the
// transition table and the per-actor guards, and stamps timestamps.
func (t *Ticket) Transition(next TicketStatus, actor Actor, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if t.Status.Terminal() {
		return ErrTicketClosed
	}
	if !CanTransition(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	if err := t.guard(next, actor); err != nil {
		return err
	}
	// timestamps never move backwards
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	if now.Before(t.UpdatedAt) {
		now = t.UpdatedAt
	}

	previous := t.Status
	t.Status = next
	t.UpdatedAt = now

	switch next {
	case TicketStatusWaitingAI:
		t.AIAttempted = true
	case TicketStatusResolved:
		resolvedAt := now
		t.ResolvedAt = &resolvedAt
		if previous == TicketStatusAIResponded {
			t.AIResolved = true
		}
	case TicketStatusInProgress:
		if previous == TicketStatusResolved {
			t.ResolvedAt = nil
			t.AIResolved = false
		}
	case TicketStatusClosed:
		closedAt := now
		t.ClosedAt = &closedAt
	}
	return nil
}

func (t *Ticket) guard(next TicketStatus, actor Actor) error {
	denied := fmt.Errorf("%w: %s -> %s", ErrTransitionForbidden, t.Status, next)

	switch next {
	case TicketStatusWaitingAI:
		if actor.System || actor.Owns(t) {
			return nil
		}
		return denied
	case TicketStatusAIResponded:
		if actor.System || actor.IsAdmin() {
			return nil
		}
		return denied
	case TicketStatusAssignedToTech:
		if !t.HasTechnician() {
			return ErrTechnicianRequired
		}
		if actor.System || actor.IsStaff() {
			return nil
		}
		return denied
	case TicketStatusInProgress:
		if !t.HasTechnician() {
			return ErrTechnicianRequired
		}
		if actor.IsAdmin() || (actor.IsTecnico() && t.IsAssignedTo(actor.ID)) {
			return nil
		}
		if t.Status == TicketStatusResolved && actor.Owns(t) {
			return nil
		}
		return denied
	case TicketStatusResolved:
		if actor.IsAdmin() {
			return nil
		}
		if t.Status == TicketStatusAIResponded && actor.Owns(t) {
			return nil
		}
		if t.Status == TicketStatusInProgress && actor.IsTecnico() && t.IsAssignedTo(actor.ID) {
			return nil
		}
		return denied
	case TicketStatusClosed:
		if actor.System || actor.IsStaff() {
			return nil
		}
		return denied
	}
	return denied
}
