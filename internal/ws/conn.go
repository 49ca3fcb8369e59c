package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of the websocket connection the supervisor drives.
// *websocket.Conn satisfies it; tests substitute in-memory fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// DialFunc establishes one duplex channel to the given URL.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Dial is the default transport, backed by the gorilla dialer.
func Dial(ctx context.Context, url string) (Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
