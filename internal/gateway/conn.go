package gateway

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// maxFrameSize bounds inbound frames. Sync pages and QR code images
// stay well under this; anything larger is a broken gateway.
const maxFrameSize = 16 * 1024 * 1024

// wsConn abstracts the WebSocket connection so the Bridge can be tested
// without a real gateway. *websocket.Conn satisfies this interface.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
	SetReadLimit(n int64)
}

// dialGateway opens a WebSocket connection to the gateway endpoint.
func dialGateway(ctx context.Context, endpoint string) (wsConn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil) //nolint:bodyclose // websocket.Dial closes the response body internally
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}

	conn.SetReadLimit(maxFrameSize)

	return conn, nil
}
