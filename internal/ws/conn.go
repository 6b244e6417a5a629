package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrSendBufferFull is returned when the outgoing buffer cannot accept
	// another frame. Callers treat it as a failed send.
	ErrSendBufferFull = errors.New("ws: send buffer full")

	// ErrConnClosed is returned when sending on a closed connection.
	ErrConnClosed = errors.New("ws: connection closed")
)

const readLimit = 1024 * 1024

// FrameProcessor consumes inbound frames and returns the reply to transmit,
// or nil when none is due.
type FrameProcessor interface {
	HandleFrame(ctx context.Context, raw []byte) []byte
}

// Conn wraps one charge-point WebSocket connection with a buffered write pump
// so that both the read loop's replies and outbound commands from other
// goroutines can transmit safely.
type Conn struct {
	chargePointID string
	ws            *websocket.Conn
	send          chan []byte
	closed        chan struct{}
	logger        *zap.Logger
	processor     FrameProcessor
	writeTimeout  time.Duration
	pingInterval  time.Duration
	readTimeout   time.Duration
	onClose       func()
	closeOnce     sync.Once
}

// NewConn builds the connection wrapper.
func NewConn(chargePointID string, ws *websocket.Conn, processor FrameProcessor, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func()) *Conn {
	return &Conn{
		chargePointID: chargePointID,
		ws:            ws,
		send:          make(chan []byte, 32),
		closed:        make(chan struct{}),
		logger:        logger,
		processor:     processor,
		writeTimeout:  writeTimeout,
		pingInterval:  pingInterval,
		readTimeout:   2 * pingInterval,
		onClose:       onClose,
	}
}

// ChargePointID returns the identifier.
func (c *Conn) ChargePointID() string {
	return c.chargePointID
}

// Start launches the write pump and runs the read loop until the connection
// drops or ctx is cancelled.
func (c *Conn) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("connection read closed",
				zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))

		if response := c.processor.HandleFrame(ctx, message); response != nil {
			if err := c.Send(response); err != nil {
				c.logger.Warn("failed to enqueue reply",
					zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			}
		}
	}
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame for transmission. It never blocks: a full buffer or a
// closed connection fails the send so callers can surface the error instead
// of silently losing a correlated call.
func (c *Conn) Send(msg []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("dropping outgoing frame, buffer full",
			zap.String("charge_point_id", c.chargePointID))
		return ErrSendBufferFull
	}
}

// Close tears the transport down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	_ = c.ws.Close()
}

func (c *Conn) cleanup() {
	c.Close()
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}
