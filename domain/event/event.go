// Package event defines the outbound events emitted by the relay.
// Events are values: once emitted they are never mutated.
package event

import (
	"chat-relay/domain"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MessageDeliveredType   Type = "message-delivered"
	TypingStateChangedType Type = "typing-state-changed"
	PresenceChangedType    Type = "presence-changed"
	CommandRejectedType    Type = "command-rejected"
)

type DomainEvent interface {
	EventType() Type
}

type MessageDelivered struct {
	ID         uuid.UUID
	Sequence   uint64
	SenderID   domain.ParticipantID
	SenderName string
	Text       string
	SentAt     time.Time
}

func (MessageDelivered) EventType() Type { return MessageDeliveredType }

// FromMessage builds the delivery event of an accepted message.
func FromMessage(m domain.Message) MessageDelivered {
	return MessageDelivered{
		ID:         m.ID,
		Sequence:   m.Sequence,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		SentAt:     m.SentAt,
	}
}

type TypingStateChanged struct {
	ParticipantID domain.ParticipantID
	DisplayName   string
	Typing        bool
	At            time.Time
}

func (TypingStateChanged) EventType() Type { return TypingStateChangedType }

type PresenceKind string

const (
	Joined PresenceKind = "joined"
	Left   PresenceKind = "left"
)

type PresenceChanged struct {
	ParticipantID domain.ParticipantID
	DisplayName   string
	Kind          PresenceKind
	At            time.Time
}

func (PresenceChanged) EventType() Type { return PresenceChangedType }

// CommandRejected is addressed to the originating connection only.
type CommandRejected struct {
	Connection domain.ParticipantID
	Code       string
	Reason     string
}

func (CommandRejected) EventType() Type { return CommandRejectedType }

// Subject returns the participant an event is about, if any.
func Subject(e DomainEvent) (domain.ParticipantID, bool) {
	switch evt := e.(type) {
	case MessageDelivered:
		return evt.SenderID, true
	case TypingStateChanged:
		return evt.ParticipantID, true
	case PresenceChanged:
		return evt.ParticipantID, true
	case CommandRejected:
		return evt.Connection, true
	}
	return "", false
}
