// Package sockjs wraps and unwraps STOMP frames in SockJS envelopes.
//
// Outbound frames travel as a JSON array holding one string. Inbound
// transport messages start with a one character tag, optionally followed
// by a JSON payload.
package sockjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gaspardpetit/stompsock/stomp/frame"
)

// Tag is the first character of an inbound envelope.
type Tag byte

const (
	TagOpen      Tag = 'o'
	TagHeartBeat Tag = 'h'
	TagArray     Tag = 'a'
	TagMessage   Tag = 'm'
	TagClose     Tag = 'c'
)

// Kind classifies a decoded envelope.
type Kind int

const (
	Unrecognized Kind = iota
	Opened
	HeartBeat
	Frames
	Closed
)

func (k Kind) String() string {
	switch k {
	case Opened:
		return "open"
	case HeartBeat:
		return "heartbeat"
	case Frames:
		return "frames"
	case Closed:
		return "close"
	case Unrecognized:
		return "unrecognized"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

var (
	// ErrMalformedEnvelope reports a payload that is not the JSON shape its tag requires.
	ErrMalformedEnvelope = errors.New("sockjs: malformed envelope")
	// ErrUnrecognizedEnvelope reports an unknown or missing tag.
	ErrUnrecognizedEnvelope = errors.New("sockjs: unrecognized envelope")
)

// CloseError carries the code and reason of a SockJS close envelope.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("sockjs: closed by server: %d %s", e.Code, e.Reason)
}

// Event is the result of decoding one inbound transport message.
type Event struct {
	Kind Kind
	Tag  Tag
	// Frames holds the raw STOMP frame texts for a Frames event, in order.
	Frames []string
	// Close is set for a Closed event.
	Close *CloseError
}

// Encode wraps the serialized frame as a single-element JSON array.
func Encode(f *frame.Frame) (string, error) {
	return EncodeText(f.Serialize())
}

// EncodeText wraps raw STOMP text, such as a heart-beat EOL, as a
// single-element JSON array.
func EncodeText(text string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string{text}); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Decode unwraps an inbound transport message. Array and single-message
// payloads are split into individual frame texts; heart-beat EOLs inside
// them are dropped.
func Decode(text string) (Event, error) {
	if text == "" {
		return Event{Kind: Unrecognized}, fmt.Errorf("%w: empty message", ErrUnrecognizedEnvelope)
	}
	tag, payload := Tag(text[0]), []byte(text[1:])
	switch tag {
	case TagOpen:
		return Event{Kind: Opened, Tag: tag}, nil
	case TagHeartBeat:
		return Event{Kind: HeartBeat, Tag: tag}, nil
	case TagArray:
		var msgs []string
		if err := json.Unmarshal(payload, &msgs); err != nil {
			return Event{Kind: Unrecognized, Tag: tag}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		if msgs == nil {
			return Event{Kind: Unrecognized, Tag: tag}, fmt.Errorf("%w: null array", ErrMalformedEnvelope)
		}
		ev := Event{Kind: Frames, Tag: tag}
		for _, m := range msgs {
			ev.Frames = append(ev.Frames, frame.Split(m)...)
		}
		return ev, nil
	case TagMessage:
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			return Event{Kind: Unrecognized, Tag: tag}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return Event{Kind: Frames, Tag: tag, Frames: frame.Split(msg)}, nil
	case TagClose:
		ce, err := decodeClose(payload)
		if err != nil {
			return Event{Kind: Unrecognized, Tag: tag}, err
		}
		return Event{Kind: Closed, Tag: tag, Close: ce}, nil
	}
	return Event{Kind: Unrecognized, Tag: tag}, fmt.Errorf("%w: tag %q", ErrUnrecognizedEnvelope, text[:1])
}

func decodeClose(payload []byte) (*CloseError, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return &CloseError{}, nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	ce := &CloseError{}
	if len(parts) > 0 {
		if err := json.Unmarshal(parts[0], &ce.Code); err != nil {
			return nil, fmt.Errorf("%w: close code: %v", ErrMalformedEnvelope, err)
		}
	}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &ce.Reason); err != nil {
			return nil, fmt.Errorf("%w: close reason: %v", ErrMalformedEnvelope, err)
		}
	}
	return ce, nil
}
