package errors

import "fmt"

var (
	ErrInvalidName      = fmt.Errorf("invalid display name")
	ErrEmptyMessage     = fmt.Errorf("message is empty")
	ErrMessageTooLong   = fmt.Errorf("message is too long")
	ErrStaleEvent       = fmt.Errorf("connection is not registered")
	ErrAlreadyJoined    = fmt.Errorf("connection already joined")
	ErrRelayClosed      = fmt.Errorf("relay is closed")
	ErrSlowConsumer     = fmt.Errorf("connection buffer is full")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrSinkPanic        = fmt.Errorf("sink panicked")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
	ErrInvalidCharacter = fmt.Errorf("replacement must be a single character")
	ErrInvalidFrame     = fmt.Errorf("invalid frame")
	ErrUnknownFrameType = fmt.Errorf("unknown frame type")
)
