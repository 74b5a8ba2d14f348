package captcha

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVariant is returned for an unknown challenge type.
	ErrUnsupportedVariant = errors.New("captcha type not supported")

	// ErrMalformedResponse marks a backend reply the client cannot use.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoSession is returned when verification is asked for without a
	// displayed challenge.
	ErrNoSession = errors.New("no active captcha session")
)

// Kind classifies failures for presentation. A negative verification is not
// an error and has no kind.
type Kind int

const (
	// KindValidation is missing or empty local input; no request was sent.
	KindValidation Kind = iota + 1
	// KindGeneration is a non-zero code from the generate endpoint.
	KindGeneration
	// KindTransport is a request that could not complete or a reply that
	// could not be understood.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGeneration:
		return "generation"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified failure with a message fit for the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidationError builds a KindValidation error.
func NewValidationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

// NewGenerationError builds a KindGeneration error carrying the server message.
func NewGenerationError(msg string) *Error {
	return &Error{Kind: KindGeneration, Message: msg}
}

// NewTransportError builds a KindTransport error.
func NewTransportError(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsGeneration reports whether err is a generation failure.
func IsGeneration(err error) bool { return KindOf(err) == KindGeneration }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
