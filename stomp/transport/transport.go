// Package transport defines the text-message transport a STOMP client
// runs on.
package transport

import (
	"context"
	"net/http"
	"time"
)

// Handler receives transport notifications. Implementations of Transport
// call it from a single goroutine, in arrival order.
type Handler interface {
	OnOpen()
	OnClose(err error)
	OnTextMessage(text string)
}

// Transport is a bidirectional text-message connection.
type Transport interface {
	// Connect opens the connection using header for the handshake and
	// starts delivering notifications to h. The header is read once.
	Connect(ctx context.Context, header http.Header, h Handler) error
	// Disconnect closes the connection, waiting at most timeout for a
	// clean close. A zero timeout closes immediately.
	Disconnect(timeout time.Duration) error
	// SendText writes one text message. It is safe for concurrent use.
	SendText(ctx context.Context, text string) error
	IsConnected() bool
}
