// Package wstransport runs the STOMP client over a WebSocket connection.
package wstransport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/stomp/transport"
)

// DefaultReadLimit bounds a single inbound message.
const DefaultReadLimit = 1 << 20

// ErrNotConnected is returned when sending without an open connection.
var ErrNotConnected = errors.New("wstransport: not connected")

// Options tune a Transport.
type Options struct {
	// ReadLimit bounds one inbound message; zero selects DefaultReadLimit.
	ReadLimit int64
	// HTTPClient is used for the handshake when set.
	HTTPClient *http.Client
	// Subprotocols offered during the handshake.
	Subprotocols []string
}

// Transport is a transport.Transport backed by coder/websocket.
type Transport struct {
	url  string
	opts Options

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	connected atomic.Bool
	closing   atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// New returns a Transport dialing url on Connect.
func New(url string, opts Options) *Transport {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	return &Transport{url: url, opts: opts}
}

// URL returns the dial target.
func (t *Transport) URL() string { return t.url }

// Connect dials the server and starts the reader. OnOpen is called before
// the first OnTextMessage.
func (t *Transport) Connect(ctx context.Context, header http.Header, h transport.Handler) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return errors.New("wstransport: already connected")
	}
	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{
		HTTPHeader:   header.Clone(),
		HTTPClient:   t.opts.HTTPClient,
		Subprotocols: t.opts.Subprotocols,
	})
	if err != nil {
		t.mu.Unlock()
		return err
	}
	conn.SetReadLimit(t.opts.ReadLimit)
	readCtx, cancel := context.WithCancel(context.Background())
	t.conn = conn
	t.cancel = cancel
	t.closing.Store(false)
	t.connected.Store(true)
	t.mu.Unlock()

	logx.Log.Debug().Str("url", t.url).Msg("websocket connected")
	h.OnOpen()
	go t.readLoop(readCtx, conn, h)
	return nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, h transport.Handler) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.connected.Store(false)
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
				t.cancel()
			}
			t.mu.Unlock()
			if t.closing.Load() || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				logx.Log.Debug().Msg("websocket closed")
				h.OnClose(nil)
				return
			}
			logx.Log.Debug().Err(err).Msg("websocket read failed")
			h.OnClose(err)
			return
		}
		if typ != websocket.MessageText {
			logx.Log.Debug().Int("bytes", len(data)).Msg("ignoring binary message")
			continue
		}
		h.OnTextMessage(string(data))
	}
}

// SendText writes one text message.
func (t *Transport) SendText(ctx context.Context, text string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Write(ctx, websocket.MessageText, []byte(text))
}

// Disconnect closes the connection. With a zero timeout the socket is
// dropped at once; otherwise a normal closure is attempted first and the
// socket is dropped when timeout expires. It does not wait for the reader
// to finish, so it may be called from a Handler callback.
func (t *Transport) Disconnect(timeout time.Duration) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	t.closing.Store(true)
	t.connected.Store(false)
	if timeout <= 0 {
		return conn.CloseNow()
	}
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Close(websocket.StatusNormalClosure, "") }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		return conn.CloseNow()
	}
}

// IsConnected reports whether the connection is open.
func (t *Transport) IsConnected() bool { return t.connected.Load() }
