// Package session sequences the client side of a STOMP conversation.
//
// A Session holds no transport. Each operation returns the frames to send
// and the events to report; the caller owns delivery of both.
package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gaspardpetit/stompsock/stomp/frame"
	"github.com/gaspardpetit/stompsock/stomp/sockjs"
)

// Fixed CONNECT header values.
const (
	AcceptVersion = "1.1"
	HeartBeat     = "10000,10000"
)

// maxDraws bounds attempts to find an unused id from the generator.
const maxDraws = 16

// State is the position of a session in the protocol sequence.
type State int

const (
	Idle State = iota
	AwaitingOpen
	AwaitingConnected
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingOpen:
		return "awaiting_open"
	case AwaitingConnected:
		return "awaiting_connected"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrUnexpectedFrame reports a well-formed frame arriving in a state that
// does not accept it.
var ErrUnexpectedFrame = errors.New("stomp: unexpected frame")

// ServerError is an ERROR frame sent by the server.
type ServerError struct {
	Message string
	Frame   *frame.Frame
}

func (e *ServerError) Error() string { return e.Message }

// EventKind classifies what a session reports to its owner.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventMessage
	EventError
)

// Event is one notification produced by the session.
type Event struct {
	Kind        EventKind
	Destination string
	Body        []byte
	Err         error
	Frame       *frame.Frame
}

// Session is the per-connection protocol state. It is not safe for
// concurrent use; the owner serializes calls.
type Session struct {
	state     State
	version   string
	heartBeat string
	explicit  bool
	subs      map[string]string
	ids       IDGenerator
	fallback  SequentialIDs
}

// New returns an Idle session. A nil generator selects SequentialIDs.
func New(ids IDGenerator) *Session {
	s := &Session{subs: map[string]string{}}
	if ids == nil {
		ids = &s.fallback
	}
	s.ids = ids
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Version returns the protocol version announced in CONNECTED.
func (s *Session) Version() string { return s.version }

// ServerHeartBeat returns the heart-beat header announced in CONNECTED.
func (s *Session) ServerHeartBeat() string { return s.heartBeat }

// Subscriptions returns a copy of the active subscription id to
// destination table.
func (s *Session) Subscriptions() map[string]string {
	out := make(map[string]string, len(s.subs))
	for id, dest := range s.subs {
		out[id] = dest
	}
	return out
}

// Connecting starts a new conversation: per-connection state is reset and
// the session waits for the SockJS open envelope.
func (s *Session) Connecting() {
	s.state = AwaitingOpen
	s.version = ""
	s.heartBeat = ""
	s.explicit = false
	s.subs = map[string]string{}
}

// Abort returns the session to Idle after a failed connection attempt.
func (s *Session) Abort() {
	s.state = Idle
}

// ConnectFrame is the CONNECT frame sent once the envelope layer opens.
func ConnectFrame() *frame.Frame {
	return frame.New(frame.Connect,
		frame.AcceptVersionHeader(AcceptVersion),
		frame.HeartBeatHeader(HeartBeat))
}

// HandleText decodes one transport text message and applies it. Decode
// and parse failures become error events; they never stop the session.
func (s *Session) HandleText(text string) ([]*frame.Frame, []Event) {
	if s.explicit {
		return nil, nil
	}
	ev, err := sockjs.Decode(text)
	if err != nil {
		return nil, []Event{{Kind: EventError, Err: err}}
	}
	return s.HandleEnvelope(ev)
}

// HandleEnvelope applies a decoded envelope. Frames are processed in order.
// After Disconnect every inbound envelope is dropped until the next
// Connecting.
func (s *Session) HandleEnvelope(ev sockjs.Event) ([]*frame.Frame, []Event) {
	if s.explicit {
		return nil, nil
	}
	switch ev.Kind {
	case sockjs.Opened:
		if s.state != AwaitingOpen {
			return nil, nil
		}
		s.state = AwaitingConnected
		return []*frame.Frame{ConnectFrame()}, nil
	case sockjs.HeartBeat:
		return nil, nil
	case sockjs.Frames:
		var events []Event
		for _, text := range ev.Frames {
			f, err := frame.ParseInbound(text)
			if err != nil {
				events = append(events, Event{Kind: EventError, Err: err})
				continue
			}
			if e, ok := s.handleFrame(f); ok {
				events = append(events, e)
			}
		}
		return nil, events
	case sockjs.Closed:
		s.teardown()
		return nil, []Event{{Kind: EventError, Err: ev.Close}}
	case sockjs.Unrecognized:
		return nil, []Event{{Kind: EventError, Err: fmt.Errorf("%w: tag %q", sockjs.ErrUnrecognizedEnvelope, string(rune(ev.Tag)))}}
	}
	return nil, nil
}

func (s *Session) handleFrame(f *frame.Frame) (Event, bool) {
	switch f.Command {
	case frame.Connected:
		if s.state != AwaitingConnected {
			return s.unexpected(f), true
		}
		s.state = Connected
		s.version = f.Headers.Value(frame.NameVersion)
		s.heartBeat = f.Headers.Value(frame.NameHeartBeat)
		return Event{Kind: EventConnected, Frame: f}, true
	case frame.Message:
		if s.state != Connected {
			return s.unexpected(f), true
		}
		return Event{Kind: EventMessage, Destination: f.Destination(), Body: []byte(f.Body), Frame: f}, true
	case frame.Error:
		return Event{Kind: EventError, Err: &ServerError{Message: f.Headers.Value(frame.NameMessage), Frame: f}, Frame: f}, true
	case frame.Connect, frame.Disconnect, frame.Subscribe, frame.Unsubscribe:
		return s.unexpected(f), true
	}
	return Event{}, false
}

func (s *Session) unexpected(f *frame.Frame) Event {
	return Event{Kind: EventError, Err: fmt.Errorf("%w: %s in state %s", ErrUnexpectedFrame, f.Command, s.state), Frame: f}
}

// Subscribe registers a new subscription and returns its id together with
// the SUBSCRIBE frame. Parameters become custom headers sorted by name;
// a parameter reusing the id or destination name is dropped.
func (s *Session) Subscribe(destination string, params map[string]string) (string, *frame.Frame) {
	id := s.nextID()
	f := frame.New(frame.Subscribe, frame.IDHeader(id), frame.DestinationHeader(destination))
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.Headers.Add(frame.CustomHeader(k, params[k]))
	}
	s.subs[id] = destination
	return id, f
}

func (s *Session) nextID() string {
	for i := 0; i < maxDraws; i++ {
		id := s.ids.NextID()
		if _, taken := s.subs[id]; !taken {
			return id
		}
	}
	for {
		id := s.fallback.NextID()
		if _, taken := s.subs[id]; !taken {
			return id
		}
	}
}

// Unsubscribe forgets the subscription, if known, and returns the
// UNSUBSCRIBE frame. Unknown ids still yield a well-formed frame.
func (s *Session) Unsubscribe(destination, id string) *frame.Frame {
	delete(s.subs, id)
	return frame.New(frame.Unsubscribe, frame.IDHeader(id), frame.DestinationHeader(destination))
}

// Disconnect ends the conversation and returns the DISCONNECT frame.
func (s *Session) Disconnect() *frame.Frame {
	s.explicit = true
	s.teardown()
	return frame.New(frame.Disconnect)
}

// TransportClosed records the end of the underlying connection. An error
// is reported only when the close was not requested through Disconnect.
func (s *Session) TransportClosed(err error) []Event {
	explicit := s.explicit
	s.teardown()
	if explicit || err == nil {
		return nil
	}
	return []Event{{Kind: EventError, Err: err}}
}

func (s *Session) teardown() {
	s.state = Disconnected
	s.subs = map[string]string{}
}
