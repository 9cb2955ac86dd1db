//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the output channel of one connection, or a permanent consumer
// such as telemetry. Consume must not block beyond ctx.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Recipient pairs an active participant with its output channel.
type Recipient struct {
	Participant domain.Participant
	Sink        EventSink
}

// IRegistry is the read side of the session registry.
type IRegistry interface {
	IsActive(id domain.ParticipantID) bool
	Participant(id domain.ParticipantID) (domain.Participant, bool)
	Snapshot() []Recipient
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Censor masks forbidden words of an accepted message.
type Censor interface {
	Censor(text string) string
}
