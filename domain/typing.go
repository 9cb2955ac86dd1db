package domain

import "time"

// TypingEntry is the ephemeral typing signal of one participant.
// Generation increases on every refresh; an expiry scheduled for an older
// generation must never clear the entry.
type TypingEntry struct {
	ParticipantID ParticipantID
	ExpiresAt     time.Time
	Generation    uint64
}
