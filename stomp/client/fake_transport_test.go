package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gaspardpetit/stompsock/stomp/transport"
)

// fakeTransport records outbound text and lets tests push inbound text.
type fakeTransport struct {
	mu         sync.Mutex
	handler    transport.Handler
	header     http.Header
	connected  bool
	sent       []string
	timeouts   []time.Duration
	connectErr error
	sendErr    error
	closeErr   error
}

func (f *fakeTransport) Connect(_ context.Context, header http.Header, h transport.Handler) error {
	f.mu.Lock()
	if f.connectErr != nil {
		f.mu.Unlock()
		return f.connectErr
	}
	f.header = header
	f.handler = h
	f.connected = true
	f.mu.Unlock()
	h.OnOpen()
	return nil
}

func (f *fakeTransport) Disconnect(timeout time.Duration) error {
	f.mu.Lock()
	f.timeouts = append(f.timeouts, timeout)
	wasConnected := f.connected
	f.connected = false
	h, err := f.handler, f.closeErr
	f.mu.Unlock()
	if wasConnected && h != nil {
		h.OnClose(err)
	}
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.connected {
		return errors.New("fake: not connected")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) deliver(text string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.OnTextMessage(text)
}

// drop simulates the peer going away.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.connected = false
	h := f.handler
	f.mu.Unlock()
	h.OnClose(err)
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type recordingDelegate struct {
	mu        sync.Mutex
	connected int
	errs      []error
	data      [][]byte
	dests     []string
	onConnect func()
}

func (r *recordingDelegate) OnConnected() {
	r.mu.Lock()
	r.connected++
	cb := r.onConnect
	r.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (r *recordingDelegate) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingDelegate) OnDataReceived(data []byte, destination string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data)
	r.dests = append(r.dests, destination)
}
