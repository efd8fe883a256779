// Package client is the application-facing STOMP over SockJS client.
//
// A Client owns one transport and one session. Outbound calls build a frame
// and hand it to the transport without waiting for the server; replies
// arrive later through the Delegate.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/core/secret"
	"github.com/gaspardpetit/stompsock/internal/metrics"
	"github.com/gaspardpetit/stompsock/stomp/frame"
	"github.com/gaspardpetit/stompsock/stomp/session"
	"github.com/gaspardpetit/stompsock/stomp/sockjs"
	"github.com/gaspardpetit/stompsock/stomp/transport"
	"github.com/gaspardpetit/stompsock/stomp/transport/wstransport"
)

// DefaultSendTimeout bounds a single transport write.
const DefaultSendTimeout = 10 * time.Second

// ErrAlreadyConnected is returned by Connect while a session is active.
var ErrAlreadyConnected = errors.New("stomp: already connected")

// Option configures a Client.
type Option func(*Client)

// WithIDGenerator replaces the subscription id generator.
func WithIDGenerator(g session.IDGenerator) Option {
	return func(c *Client) { c.ids = g }
}

// WithHeader adds a handshake header, e.g. a session cookie.
func WithHeader(name, value string) Option {
	return func(c *Client) { c.header.Set(name, value) }
}

// WithHeartbeat makes the client send an EOL heart-beat every interval
// while connected. By default heart-beats are neither sent nor answered.
func WithHeartbeat(interval time.Duration) Option {
	return func(c *Client) { c.heartbeat = interval }
}

// WithDelegate sets the initial delegate.
func WithDelegate(d Delegate) Option {
	return func(c *Client) { c.setDelegate(d) }
}

// WithSendTimeout bounds each transport write.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.sendTimeout = d
		}
	}
}

// Client is safe for concurrent use.
type Client struct {
	transport   transport.Transport
	ids         session.IDGenerator
	heartbeat   time.Duration
	sendTimeout time.Duration

	mu       sync.Mutex
	sess     *session.Session
	delegate Delegate
	header   http.Header
	stopBeat context.CancelFunc
	done     chan struct{}

	sendMu sync.Mutex
}

// New returns a Client running on t.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport:   t,
		sendTimeout: DefaultSendTimeout,
		delegate:    noDelegate{},
		header:      http.Header{},
		done:        make(chan struct{}),
	}
	close(c.done)
	for _, opt := range opts {
		opt(c)
	}
	c.sess = session.New(c.ids)
	return c
}

// NewWithURL returns a Client whose transport is a WebSocket to url.
// Nothing is dialed until Connect.
func NewWithURL(url string, opts ...Option) *Client {
	return New(wstransport.New(url, wstransport.Options{}), opts...)
}

// SetDelegate replaces the delegate. Nil detaches it; events are dropped.
func (c *Client) SetDelegate(d Delegate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDelegate(d)
}

func (c *Client) setDelegate(d Delegate) {
	if d == nil {
		d = noDelegate{}
	}
	c.delegate = d
}

// SetHeader sets a handshake header. It takes effect on the next Connect.
func (c *Client) SetHeader(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header.Set(field, value)
}

// Header returns a copy of the handshake headers.
func (c *Client) Header() http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header.Clone()
}

// IsConnected reports whether the transport is open.
func (c *Client) IsConnected() bool { return c.transport.IsConnected() }

// State returns the session state.
func (c *Client) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.State()
}

// Subscriptions returns the active subscription id to destination table.
func (c *Client) Subscriptions() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Subscriptions()
}

// Done returns a channel closed when the current session ends, whether by
// Disconnect, a server close or a transport failure. It is closed after the
// delegate has received the session's final events. Before the first
// Connect the channel is already closed.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// endSession must be called with c.mu held.
func (c *Client) endSession() { closeDone(c.done) }

// finish closes done once the delegate has seen the session's last events.
func (c *Client) finish(done chan struct{}) {
	c.mu.Lock()
	closeDone(done)
	c.mu.Unlock()
}

// closeDone must be called with c.mu held.
func closeDone(done chan struct{}) {
	select {
	case <-done:
	default:
		close(done)
	}
}

// Connect opens the transport. CONNECT is sent once the server opens the
// SockJS session; the delegate hears OnConnected when CONNECTED arrives.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.sess.State() {
	case session.AwaitingOpen, session.AwaitingConnected, session.Connected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case session.Idle, session.Disconnected:
	}
	c.sess.Connecting()
	c.done = make(chan struct{})
	header := c.header.Clone()
	c.mu.Unlock()

	logx.Log.Debug().Interface("header", secret.RedactHeader(header)).Msg("connecting")
	if err := c.transport.Connect(ctx, header, handler{c}); err != nil {
		c.mu.Lock()
		c.sess.Abort()
		c.endSession()
		c.mu.Unlock()
		return err
	}
	return nil
}

// Disconnect sends DISCONNECT and closes the transport without a grace
// period. Active subscriptions are dropped.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	f := c.sess.Disconnect()
	c.stopHeartbeat()
	c.endSession()
	c.mu.Unlock()
	metrics.SetActiveSubscriptions(0)

	var sendErr error
	if c.transport.IsConnected() {
		sendErr = c.send(f)
	}
	return errors.Join(sendErr, c.transport.Disconnect(0))
}

// Subscribe sends SUBSCRIBE for destination with params as extra headers
// and returns the subscription id to use with Unsubscribe.
func (c *Client) Subscribe(destination string, params map[string]string) (string, error) {
	c.mu.Lock()
	id, f := c.sess.Subscribe(destination, params)
	n := len(c.sess.Subscriptions())
	c.mu.Unlock()
	metrics.SetActiveSubscriptions(n)
	return id, c.send(f)
}

// Unsubscribe sends UNSUBSCRIBE for the given destination and id. Unknown
// ids are sent as well; the server decides.
func (c *Client) Unsubscribe(destination, id string) error {
	c.mu.Lock()
	f := c.sess.Unsubscribe(destination, id)
	n := len(c.sess.Subscriptions())
	c.mu.Unlock()
	metrics.SetActiveSubscriptions(n)
	return c.send(f)
}

func (c *Client) send(f *frame.Frame) error {
	text, err := sockjs.Encode(f)
	if err != nil {
		return err
	}
	if err := c.sendText(text); err != nil {
		logx.Log.Warn().Err(err).Str("command", f.Command.String()).Msg("send failed")
		return err
	}
	metrics.RecordFrameSent(f.Command.String())
	logx.Log.Debug().Str("command", f.Command.String()).Str("destination", f.Destination()).Msg("frame sent")
	return nil
}

func (c *Client) sendText(text string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), c.sendTimeout)
	defer cancel()
	return c.transport.SendText(ctx, text)
}

// startHeartbeat must be called with c.mu held.
func (c *Client) startHeartbeat() {
	if c.heartbeat <= 0 || c.stopBeat != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopBeat = cancel
	beat, _ := sockjs.EncodeText("\n")
	go startHeartbeat(ctx, c.heartbeat, func(context.Context) error {
		return c.sendText(beat)
	})
}

// stopHeartbeat must be called with c.mu held.
func (c *Client) stopHeartbeat() {
	if c.stopBeat != nil {
		c.stopBeat()
		c.stopBeat = nil
	}
}

func (c *Client) dispatch(d Delegate, events []session.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case session.EventConnected:
			logx.Log.Info().Msg("stomp session connected")
			d.OnConnected()
		case session.EventMessage:
			d.OnDataReceived(ev.Body, ev.Destination)
		case session.EventError:
			metrics.RecordError(errorKind(ev.Err))
			logx.Log.Debug().Err(ev.Err).Msg("stomp error")
			d.OnError(ev.Err)
		}
	}
}

func errorKind(err error) string {
	var (
		se *session.ServerError
		ce *sockjs.CloseError
	)
	switch {
	case errors.As(err, &se):
		return "server"
	case errors.As(err, &ce):
		return "closed"
	case errors.Is(err, frame.ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, sockjs.ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, sockjs.ErrUnrecognizedEnvelope):
		return "unrecognized_envelope"
	case errors.Is(err, session.ErrUnexpectedFrame):
		return "unexpected_frame"
	default:
		return "transport"
	}
}

// handler receives transport callbacks for a Client.
type handler struct{ c *Client }

func (h handler) OnOpen() {
	logx.Log.Debug().Msg("transport open; waiting for sockjs open frame")
}

func (h handler) OnTextMessage(text string) {
	c := h.c
	ev, err := sockjs.Decode(text)
	metrics.RecordEnvelope(ev.Kind.String())

	c.mu.Lock()
	var (
		out    []*frame.Frame
		events []session.Event
	)
	if err != nil {
		out, events = c.sess.HandleText(text)
	} else {
		out, events = c.sess.HandleEnvelope(ev)
	}
	state := c.sess.State()
	switch state {
	case session.Connected:
		c.startHeartbeat()
	case session.Disconnected:
		c.stopHeartbeat()
	case session.Idle, session.AwaitingOpen, session.AwaitingConnected:
	}
	d, done := c.delegate, c.done
	c.mu.Unlock()

	for _, e := range events {
		if e.Frame != nil {
			metrics.RecordFrameReceived(e.Frame.Command.String())
		}
	}
	for _, f := range out {
		if err := c.send(f); err != nil {
			events = append(events, session.Event{Kind: session.EventError, Err: err})
		}
	}
	c.dispatch(d, events)
	if ev.Kind == sockjs.Closed {
		_ = c.transport.Disconnect(0)
	}
	if state == session.Disconnected {
		c.finish(done)
	}
}

func (h handler) OnClose(err error) {
	c := h.c
	c.mu.Lock()
	events := c.sess.TransportClosed(err)
	c.stopHeartbeat()
	d, done := c.delegate, c.done
	c.mu.Unlock()
	metrics.SetActiveSubscriptions(0)
	logx.Log.Debug().Err(err).Msg("transport closed")
	c.dispatch(d, events)
	c.finish(done)
}
