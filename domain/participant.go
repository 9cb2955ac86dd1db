// Package domain contains core concepts of the chat relay.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxDisplayNameLength is counted in runes.
const MaxDisplayNameLength = 64

var validate = validator.New()

// ParticipantID is the opaque identifier of a connection, assigned at connect time.
type ParticipantID string

// Participant is one joined connection.
// DisplayName is set once at join time and is not unique across participants.
type Participant struct {
	ID          ParticipantID
	DisplayName string
	ConnectedAt time.Time
}

// NewParticipant trims the display name and rejects it when empty or too long.
func NewParticipant(id ParticipantID, displayName string, connectedAt time.Time) (Participant, error) {
	name := strings.TrimSpace(displayName)
	if err := validate.Var(name, fmt.Sprintf("required,max=%d", MaxDisplayNameLength)); err != nil {
		return Participant{}, fmt.Errorf("%w: %q", errors.ErrInvalidName, displayName)
	}
	return Participant{
		ID:          id,
		DisplayName: name,
		ConnectedAt: connectedAt,
	}, nil
}
