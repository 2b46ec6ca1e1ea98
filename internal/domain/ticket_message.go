package domain

import "time"

// MessageType tags who originated an entry in the ticket thread.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeAI     MessageType = "ai"
	MessageTypeTech   MessageType = "tech"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether m is a declared message type.
func (m MessageType) Valid() bool {
	switch m {
	case MessageTypeUser, MessageTypeAI, MessageTypeTech, MessageTypeSystem:
		return true
	}
	return false
}

// TicketMessage is an append-only entry in a ticket conversation.
// SenderID is nil for ai and system entries.
type TicketMessage struct {
	ID          string
	TicketID    string
	SenderID    *string
	Content     string
	MessageType MessageType
	CreatedAt   time.Time
}
