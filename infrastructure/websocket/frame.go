package websocket

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Frame is the JSON envelope of every WebSocket message, in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeJoin        = "join"
	TypeSendMessage = "send-message"
	TypeTypingPulse = "typing-pulse"
	TypeWelcome     = "welcome"
)

type JoinPayload struct {
	DisplayName string `json:"displayName"`
}

type SendMessagePayload struct {
	Text string `json:"text"`
}

type WelcomePayload struct {
	ParticipantID string `json:"participantId"`
}

type MessageDeliveredPayload struct {
	ID         string    `json:"id"`
	Sequence   uint64    `json:"sequence"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

type TypingStateChangedPayload struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	Typing        bool      `json:"typing"`
	At            time.Time `json:"at"`
}

type PresenceChangedPayload struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	Kind          string    `json:"kind"`
	At            time.Time `json:"at"`
}

type CommandRejectedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Welcome is the first frame a connection receives. It is not a relay event.
type Welcome struct {
	ParticipantID domain.ParticipantID
}

func (Welcome) EventType() event.Type { return TypeWelcome }

func newFrame(frameType string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: frameType, Payload: data}, nil
}

// EncodeEvent maps an outbound event to its frame.
func EncodeEvent(e event.DomainEvent) (Frame, error) {
	switch evt := e.(type) {
	case Welcome:
		return newFrame(TypeWelcome, WelcomePayload{ParticipantID: string(evt.ParticipantID)})
	case event.MessageDelivered:
		return newFrame(string(event.MessageDeliveredType), MessageDeliveredPayload{
			ID:         evt.ID.String(),
			Sequence:   evt.Sequence,
			SenderID:   string(evt.SenderID),
			SenderName: evt.SenderName,
			Text:       evt.Text,
			SentAt:     evt.SentAt,
		})
	case event.TypingStateChanged:
		return newFrame(string(event.TypingStateChangedType), TypingStateChangedPayload{
			ParticipantID: string(evt.ParticipantID),
			DisplayName:   evt.DisplayName,
			Typing:        evt.Typing,
			At:            evt.At,
		})
	case event.PresenceChanged:
		return newFrame(string(event.PresenceChangedType), PresenceChangedPayload{
			ParticipantID: string(evt.ParticipantID),
			DisplayName:   evt.DisplayName,
			Kind:          string(evt.Kind),
			At:            evt.At,
		})
	case event.CommandRejected:
		return newFrame(string(event.CommandRejectedType), CommandRejectedPayload{
			Code:    evt.Code,
			Message: evt.Reason,
		})
	default:
		return Frame{}, fmt.Errorf("%w: %T", errors.ErrUnknownFrameType, e)
	}
}

// DecodeCommand parses an inbound frame sent by connection id.
func DecodeCommand(id domain.ParticipantID, data []byte) (domain.Command, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	switch frame.Type {
	case TypeJoin:
		var payload JoinPayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		return domain.JoinCommand{Connection: id, DisplayName: payload.DisplayName}, nil
	case TypeSendMessage:
		var payload SendMessagePayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		return domain.SendMessageCommand{Connection: id, Text: payload.Text}, nil
	case TypeTypingPulse:
		return domain.TypingPulseCommand{Connection: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFrameType, frame.Type)
	}
}

// EncodeCommand builds the frame a client sends for cmd.
func EncodeCommand(cmd domain.Command) (Frame, error) {
	switch c := cmd.(type) {
	case domain.JoinCommand:
		return newFrame(TypeJoin, JoinPayload{DisplayName: c.DisplayName})
	case domain.SendMessageCommand:
		return newFrame(TypeSendMessage, SendMessagePayload{Text: c.Text})
	case domain.TypingPulseCommand:
		return Frame{Type: TypeTypingPulse}, nil
	default:
		return Frame{}, fmt.Errorf("%w: %T", errors.ErrUnknownFrameType, cmd)
	}
}

// DecodeEvent is the client side of EncodeEvent.
func DecodeEvent(data []byte) (event.DomainEvent, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	switch frame.Type {
	case TypeWelcome:
		var payload WelcomePayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		return Welcome{ParticipantID: domain.ParticipantID(payload.ParticipantID)}, nil
	case string(event.MessageDeliveredType):
		var payload MessageDeliveredPayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(payload.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
		}
		return event.MessageDelivered{
			ID:         id,
			Sequence:   payload.Sequence,
			SenderID:   domain.ParticipantID(payload.SenderID),
			SenderName: payload.SenderName,
			Text:       payload.Text,
			SentAt:     payload.SentAt,
		}, nil
	case string(event.TypingStateChangedType):
		var payload TypingStateChangedPayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		return event.TypingStateChanged{
			ParticipantID: domain.ParticipantID(payload.ParticipantID),
			DisplayName:   payload.DisplayName,
			Typing:        payload.Typing,
			At:            payload.At,
		}, nil
	case string(event.PresenceChangedType):
		var payload PresenceChangedPayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		return event.PresenceChanged{
			ParticipantID: domain.ParticipantID(payload.ParticipantID),
			DisplayName:   payload.DisplayName,
			Kind:          event.PresenceKind(payload.Kind),
			At:            payload.At,
		}, nil
	case string(event.CommandRejectedType):
		var payload CommandRejectedPayload
		if err := unmarshalPayload(frame, &payload); err != nil {
			return nil, err
		}
		return event.CommandRejected{Code: payload.Code, Reason: payload.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFrameType, frame.Type)
	}
}

func unmarshalPayload(frame Frame, payload any) error {
	if len(frame.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", errors.ErrInvalidFrame, frame.Type)
	}
	if err := json.Unmarshal(frame.Payload, payload); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	return nil
}
