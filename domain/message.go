// Package domain contains core concepts of the chat relay.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat message accepted by the relay.
// SenderName is copied from the participant at send time.
type Message struct {
	ID         uuid.UUID // unique identifier
	Sequence   uint64    // relay acceptance order
	SenderID   ParticipantID
	SenderName string
	Text       string
	SentAt     time.Time
}

// NormalizeText trims the raw text and checks it against maxLength (in runes).
// A maxLength of zero disables the length check.
func NormalizeText(raw string, maxLength int) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", errors.ErrEmptyMessage
	}
	if maxLength > 0 {
		if err := validate.Var(text, fmt.Sprintf("max=%d", maxLength)); err != nil {
			return "", fmt.Errorf("%w: limit is %d characters", errors.ErrMessageTooLong, maxLength)
		}
	}
	return text, nil
}
