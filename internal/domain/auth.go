package domain

import "time"

// AppRole enumerates authorization tags attached to users.
type AppRole string

const (
	RoleAdmin   AppRole = "admin"
	RoleTecnico AppRole = "tecnico"
	RoleCliente AppRole = "cliente"
)

// Valid reports whether r is a declared role.
func (r AppRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTecnico, RoleCliente:
		return true
	}
	return false
}

// UserRole grants a role to a user. A user may hold several.
type UserRole struct {
	ID        string
	UserID    string
	Role      AppRole
	CreatedAt time.Time
}

// Session is the authenticated caller as seen by request handlers.
type Session struct {
	TokenID   string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Actor is whoever performs an operation on a ticket.
type Actor struct {
	ID     string
	Roles  []AppRole
	System bool
}

// SystemActor is used for timeouts and automated processing.
func SystemActor() Actor {
	return Actor{System: true}
}

// HasRole reports whether the actor holds role.
func (a Actor) HasRole(role AppRole) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool   { return a.HasRole(RoleAdmin) }
func (a Actor) IsTecnico() bool { return a.HasRole(RoleTecnico) }

// IsStaff reports whether the actor works tickets rather than filing them.
func (a Actor) IsStaff() bool {
	return a.IsAdmin() || a.IsTecnico()
}

// Owns reports whether the actor filed t.
func (a Actor) Owns(t *Ticket) bool {
	return !a.System && a.ID != "" && a.ID == t.UserID
}

// SenderID returns the id to stamp on messages, nil for the system actor.
func (a Actor) SenderID() *string {
	if a.System || a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}
