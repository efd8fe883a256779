package frame

import (
	"errors"
	"strconv"
)

// ErrMalformedFrame is matched by every frame parsing failure.
var ErrMalformedFrame = errors.New("stomp: malformed frame")

// ParseError describes why a frame text could not be parsed.
type ParseError struct {
	Reason string
	Line   string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return ErrMalformedFrame.Error() + ": " + e.Reason
	}
	return ErrMalformedFrame.Error() + ": " + e.Reason + " " + strconv.Quote(e.Line)
}

func (e *ParseError) Unwrap() error { return ErrMalformedFrame }
