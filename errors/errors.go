package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrMalformedFrame   = fmt.Errorf("malformed frame")
	ErrUnknownFrameType = fmt.Errorf("unknown frame type")
	ErrInvalidName      = fmt.Errorf("name must be between 1 and 64 characters")
	ErrEmptyMessage     = fmt.Errorf("empty message")
	ErrTextTooLong      = fmt.Errorf("text is too long")
	ErrNotJoined        = fmt.Errorf("connection has not joined")
	ErrDuplicateHandle  = fmt.Errorf("handle already registered")
	ErrUnknownHandle    = fmt.Errorf("handle not registered")

	ErrTimeout            = fmt.Errorf("timeout")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrInvalidLang        = fmt.Errorf("invalid language")

	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrSlowConsumer     = fmt.Errorf("slow consumer")
)

// Kind classifies a failure by its blast radius.
type Kind int

const (
	KindUnknown Kind = iota
	KindProtocol
	KindTranslation
	KindAssistant
	KindConnection
	KindRegistryInvariant
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindTranslation:
		return "translation"
	case KindAssistant:
		return "assistant"
	case KindConnection:
		return "connection"
	case KindRegistryInvariant:
		return "registry_invariant"
	default:
		return "unknown"
	}
}

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Protocol(op string, err error) error    { return New(KindProtocol, op, err) }
func Translation(op string, err error) error { return New(KindTranslation, op, err) }
func Assistant(op string, err error) error   { return New(KindAssistant, op, err) }
func Connection(op string, err error) error  { return New(KindConnection, op, err) }
func Registry(op string, err error) error    { return New(KindRegistryInvariant, op, err) }

// KindOf returns the Kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
