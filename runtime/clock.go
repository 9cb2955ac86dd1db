package runtime

import (
	"chat-relay/contract"
	"time"
)

// SystemClock is the relay clock backed by the time package.
type SystemClock struct{}

var _ contract.Clock = SystemClock{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) contract.Timer {
	return time.AfterFunc(d, f)
}
