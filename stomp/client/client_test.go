package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gaspardpetit/stompsock/stomp/frame"
	"github.com/gaspardpetit/stompsock/stomp/session"
	"github.com/gaspardpetit/stompsock/stomp/sockjs"
)

const (
	connectedFrame = "CONNECTED\nheart-beat:0,0\nversion:1.1\n\n\x00"
	messageFrame   = "MESSAGE\ndestination:/topic/x\nsubscription:sub-0\nmessage-id:1234\ncontent-length:0\n\n{\"key\":\"value\"}\n\x00"
	errorFrame     = "ERROR\nmessage:this is an error\ncontent-length:0\n\n\x00"
)

func array(t *testing.T, frames ...string) string {
	t.Helper()
	b, err := json.Marshal(frames)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return "a" + string(b)
}

func unwrap(t *testing.T, text string) *frame.Frame {
	t.Helper()
	var arr []string
	if err := json.Unmarshal([]byte(text), &arr); err != nil || len(arr) != 1 {
		t.Fatalf("outbound %q is not a one-element array: %v", text, err)
	}
	f, err := frame.Parse(arr[0])
	if err != nil {
		t.Fatalf("outbound frame: %v", err)
	}
	return f
}

func newConnected(t *testing.T, opts ...Option) (*Client, *fakeTransport, *recordingDelegate) {
	t.Helper()
	ft := &fakeTransport{}
	rd := &recordingDelegate{}
	c := New(ft, append([]Option{WithDelegate(rd)}, opts...)...)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ft.deliver("o")
	ft.deliver(array(t, connectedFrame))
	if c.State() != session.Connected {
		t.Fatalf("state = %v; want connected", c.State())
	}
	return c, ft, rd
}

func TestSetHeaderValue(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft, WithHeader("X-Client", "desktop"))
	c.SetHeader("Cookie", "JSESSIONID=1234567890")
	c.SetHeader("Authorization", "Bearer 1234567890")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, name := range []string{"Cookie", "Authorization", "X-Client"} {
		if ft.header.Get(name) == "" {
			t.Fatalf("header %s not passed to transport: %v", name, ft.header)
		}
	}
	c.SetHeader("Cookie", "changed")
	if ft.header.Get("Cookie") != "JSESSIONID=1234567890" {
		t.Fatalf("header mutated after connect")
	}
}

func TestConnectSendsConnectOnOpen(t *testing.T) {
	ft := &fakeTransport{}
	rd := &recordingDelegate{}
	c := New(ft, WithDelegate(rd))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(ft.sentTexts()) != 0 {
		t.Fatalf("CONNECT sent before sockjs open: %q", ft.sentTexts())
	}
	if c.State() != session.AwaitingOpen {
		t.Fatalf("state = %v", c.State())
	}
	ft.deliver("o")
	sent := ft.sentTexts()
	if len(sent) != 1 {
		t.Fatalf("sent = %q", sent)
	}
	want := `["CONNECT\naccept-version:1.1\nheart-beat:10000,10000\n\n\u0000"]`
	if sent[0] != want {
		t.Fatalf("sent = %s; want %s", sent[0], want)
	}
	ft.deliver(array(t, connectedFrame))
	if rd.connected != 1 || len(rd.errs) != 0 {
		t.Fatalf("connected=%d errs=%v", rd.connected, rd.errs)
	}
}

func TestConnectTwice(t *testing.T) {
	c, _, _ := newConnected(t)
	if err := c.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("err = %v; want ErrAlreadyConnected", err)
	}
}

func TestConnectFailureResetsState(t *testing.T) {
	ft := &fakeTransport{connectErr: errors.New("dial refused")}
	c := New(ft)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if c.State() != session.Idle {
		t.Fatalf("state = %v; want idle", c.State())
	}
}

func TestSubscribeAndReceive(t *testing.T) {
	c, ft, rd := newConnected(t)
	id, err := c.Subscribe("/topic/x", map[string]string{"eid": "5566"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if id != "sub-0" {
		t.Fatalf("id = %q", id)
	}
	sent := ft.sentTexts()
	f := unwrap(t, sent[len(sent)-1])
	if f.Command != frame.Subscribe || f.Headers.Value("id") != id || f.Destination() != "/topic/x" || f.Headers.Value("eid") != "5566" {
		t.Fatalf("subscribe frame = %q", f.Serialize())
	}
	ft.deliver(array(t, messageFrame))
	if len(rd.data) != 1 {
		t.Fatalf("data = %q", rd.data)
	}
	if rd.dests[0] != "/topic/x" || string(rd.data[0]) != "{\"key\":\"value\"}\n" {
		t.Fatalf("dest=%q data=%q", rd.dests[0], rd.data[0])
	}
	if got := c.Subscriptions(); got[id] != "/topic/x" {
		t.Fatalf("subscriptions = %v", got)
	}
}

func TestDeterministicIDs(t *testing.T) {
	n := 0
	ids := session.IDFunc(func() string {
		n++
		return "sub-" + strings.Repeat("9", n)
	})
	c, _, _ := newConnected(t, WithIDGenerator(ids))
	a, _ := c.Subscribe("/a", nil)
	b, _ := c.Subscribe("/b", nil)
	if a != "sub-9" || b != "sub-99" {
		t.Fatalf("ids = %q, %q", a, b)
	}
}

func TestErrorFrame(t *testing.T) {
	c, ft, rd := newConnected(t)
	if _, err := c.Subscribe("/path", nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ft.deliver(array(t, errorFrame))
	if len(rd.errs) != 1 || rd.errs[0].Error() != "this is an error" {
		t.Fatalf("errs = %v", rd.errs)
	}
	if c.State() != session.Connected {
		t.Fatalf("ERROR changed state to %v", c.State())
	}
}

func TestUnsubscribeUnknownID(t *testing.T) {
	c, ft, rd := newConnected(t)
	if err := c.Unsubscribe("/path", "sub-0"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	sent := ft.sentTexts()
	f := unwrap(t, sent[len(sent)-1])
	if f.Serialize() != "UNSUBSCRIBE\nid:sub-0\ndestination:/path\n\n\x00" {
		t.Fatalf("frame = %q", f.Serialize())
	}
	if len(rd.errs) != 0 {
		t.Fatalf("errs = %v", rd.errs)
	}
}

func TestDisconnect(t *testing.T) {
	c, ft, rd := newConnected(t)
	ft.closeErr = errors.New("closed by us")
	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	sent := ft.sentTexts()
	if f := unwrap(t, sent[len(sent)-1]); f.Command != frame.Disconnect || f.Headers.Len() != 0 {
		t.Fatalf("last frame = %q", f.Serialize())
	}
	if len(ft.timeouts) != 1 || ft.timeouts[0] != 0 {
		t.Fatalf("disconnect timeouts = %v", ft.timeouts)
	}
	if c.State() != session.Disconnected || c.IsConnected() {
		t.Fatalf("state=%v connected=%v", c.State(), c.IsConnected())
	}
	if len(rd.errs) != 0 {
		t.Fatalf("close after explicit disconnect reported: %v", rd.errs)
	}
}

func TestLateInboundAfterDisconnectIsQuiet(t *testing.T) {
	c, ft, rd := newConnected(t)
	if _, err := c.Subscribe("/topic/x", nil); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	ft.deliver(array(t, messageFrame))
	ft.deliver(`c[3000,"Go away!"]`)
	ft.deliver("x")
	if len(rd.errs) != 0 || len(rd.data) != 0 {
		t.Fatalf("late inbound surfaced: errs=%v data=%q", rd.errs, rd.data)
	}
}

func TestUnexpectedClose(t *testing.T) {
	c, ft, rd := newConnected(t)
	cause := errors.New("connection reset by peer")
	ft.drop(cause)
	if len(rd.errs) != 1 || rd.errs[0] != cause {
		t.Fatalf("errs = %v", rd.errs)
	}
	if c.State() != session.Disconnected {
		t.Fatalf("state = %v", c.State())
	}
}

func TestServerCloseEnvelope(t *testing.T) {
	c, ft, rd := newConnected(t)
	ft.deliver(`c[3000,"Go away!"]`)
	var ce *sockjs.CloseError
	if len(rd.errs) != 1 || !errors.As(rd.errs[0], &ce) {
		t.Fatalf("errs = %v", rd.errs)
	}
	if c.IsConnected() || len(ft.timeouts) != 1 {
		t.Fatalf("transport not closed: %v", ft.timeouts)
	}
}

func TestMalformedInput(t *testing.T) {
	c, ft, rd := newConnected(t)
	before := len(ft.sentTexts())
	ft.deliver("x")
	ft.deliver("a[not json")
	if len(rd.errs) != 2 {
		t.Fatalf("errs = %v", rd.errs)
	}
	if !errors.Is(rd.errs[0], sockjs.ErrUnrecognizedEnvelope) || !errors.Is(rd.errs[1], sockjs.ErrMalformedEnvelope) {
		t.Fatalf("errs = %v", rd.errs)
	}
	if len(ft.sentTexts()) != before || c.State() != session.Connected {
		t.Fatalf("malformed input changed the session")
	}
}

func TestNoDelegate(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft)
	c.SetDelegate(nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ft.deliver("o")
	ft.deliver(array(t, connectedFrame, messageFrame, errorFrame))
	ft.deliver("x")
	if c.State() != session.Connected {
		t.Fatalf("state = %v", c.State())
	}
}

func TestSubscribeFromConnectedCallback(t *testing.T) {
	ft := &fakeTransport{}
	rd := &recordingDelegate{}
	c := New(ft, WithDelegate(rd))
	rd.onConnect = func() {
		if _, err := c.Subscribe("/account/modelinfo", nil); err != nil {
			t.Errorf("subscribe: %v", err)
		}
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ft.deliver("o")
	ft.deliver(array(t, connectedFrame))
	sent := ft.sentTexts()
	if len(sent) != 2 || unwrap(t, sent[1]).Command != frame.Subscribe {
		t.Fatalf("sent = %q", sent)
	}
}

func TestHeartBeatNotAnsweredByDefault(t *testing.T) {
	_, ft, _ := newConnected(t)
	before := len(ft.sentTexts())
	ft.deliver("h")
	if len(ft.sentTexts()) != before {
		t.Fatalf("heart-beat answered: %q", ft.sentTexts())
	}
}

func TestHeartbeatOption(t *testing.T) {
	c, ft, _ := newConnected(t, WithHeartbeat(5*time.Millisecond))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range ft.sentTexts() {
			if s == `["\n"]` {
				_ = c.Disconnect()
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no heart-beat sent: %q", ft.sentTexts())
}

func TestSendError(t *testing.T) {
	c, ft, _ := newConnected(t)
	ft.sendErr = errors.New("broken pipe")
	if _, err := c.Subscribe("/a", nil); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestConnectSendFailureReachesDelegate(t *testing.T) {
	ft := &fakeTransport{}
	rd := &recordingDelegate{}
	c := New(ft, WithDelegate(rd))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	cause := errors.New("broken pipe")
	ft.sendErr = cause
	ft.deliver("o")
	if len(rd.errs) != 1 || !errors.Is(rd.errs[0], cause) {
		t.Fatalf("errs = %v; want the send failure", rd.errs)
	}
	if rd.connected != 0 {
		t.Fatalf("connected fired without CONNECTED")
	}
	if c.State() != session.AwaitingConnected {
		t.Fatalf("state = %v", c.State())
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&session.ServerError{Message: "x"}, "server"},
		{&sockjs.CloseError{Code: 3000}, "closed"},
		{&frame.ParseError{Reason: "r"}, "malformed_frame"},
		{sockjs.ErrMalformedEnvelope, "malformed_envelope"},
		{sockjs.ErrUnrecognizedEnvelope, "unrecognized_envelope"},
		{session.ErrUnexpectedFrame, "unexpected_frame"},
		{errors.New("eof"), "transport"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q; want %q", tt.err, got, tt.want)
		}
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestDoneTracksSession(t *testing.T) {
	c := New(&fakeTransport{})
	if !closed(c.Done()) {
		t.Fatalf("Done open before Connect")
	}

	c, ft, _ := newConnected(t)
	done := c.Done()
	if closed(done) {
		t.Fatalf("Done closed while connected")
	}
	ft.drop(nil)
	if !closed(done) {
		t.Fatalf("Done open after a clean transport close")
	}

	c2, _, _ := newConnected(t)
	done = c2.Done()
	if err := c2.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !closed(done) {
		t.Fatalf("Done open after Disconnect")
	}

	c3, ft3, _ := newConnected(t)
	done = c3.Done()
	ft3.deliver(`c[1000,"bye"]`)
	if !closed(done) {
		t.Fatalf("Done open after close envelope")
	}
}

func TestDoneAfterFailedConnect(t *testing.T) {
	ft := &fakeTransport{connectErr: errors.New("refused")}
	c := New(ft)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("connect succeeded")
	}
	if !closed(c.Done()) {
		t.Fatalf("Done open after failed connect")
	}
}
