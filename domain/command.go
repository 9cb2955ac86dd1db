package domain

// Command is an inbound event handled by the relay.
// Every command carries the connection it originates from.
type Command interface {
	ConnectionID() ParticipantID
}

type JoinCommand struct {
	Connection  ParticipantID
	DisplayName string
}

func (c JoinCommand) ConnectionID() ParticipantID { return c.Connection }

type SendMessageCommand struct {
	Connection ParticipantID
	Text       string
}

func (c SendMessageCommand) ConnectionID() ParticipantID { return c.Connection }

type TypingPulseCommand struct {
	Connection ParticipantID
}

func (c TypingPulseCommand) ConnectionID() ParticipantID { return c.Connection }

// DisconnectCommand is produced by the transport when the connection goes away.
type DisconnectCommand struct {
	Connection ParticipantID
}

func (c DisconnectCommand) ConnectionID() ParticipantID { return c.Connection }

// TypingExpiredCommand is posted by a typing timer, never by a participant.
type TypingExpiredCommand struct {
	Participant ParticipantID
	Generation  uint64
}

func (c TypingExpiredCommand) ConnectionID() ParticipantID { return c.Participant }
