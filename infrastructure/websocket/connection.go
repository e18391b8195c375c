package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var _ domain.Sink = (*Connection)(nil)

// Connection owns one websocket for its whole life:
// Connecting -> Open -> Closing -> Closed, never backwards.
// Only the write pump writes data frames, Close may run from any goroutine.
type Connection struct {
	handle       domain.Handle
	conn         *websocket.Conn
	orchestrator contract.IOrchestrator
	log          *slog.Logger
	cfg          Config
	send         chan []byte
	done         chan struct{}
	state        atomic.Int32
	closeOnce    sync.Once
	onClose      func(*Connection)
}

func NewConnection(
	handle domain.Handle,
	conn *websocket.Conn,
	orchestrator contract.IOrchestrator,
	log *slog.Logger,
	cfg Config,
	onClose func(*Connection)) *Connection {
	c := &Connection{
		handle:       handle,
		conn:         conn,
		orchestrator: orchestrator,
		log:          log.With("handle", handle),
		cfg:          cfg,
		send:         make(chan []byte, cfg.ConnectionBufferSize),
		done:         make(chan struct{}),
		onClose:      onClose,
	}
	c.state.Store(int32(domain.Connecting))
	return c
}

func (c *Connection) Handle() domain.Handle { return c.handle }

func (c *Connection) State() domain.ConnState { return domain.ConnState(c.state.Load()) }

func (c *Connection) Open() bool { return c.State() == domain.Open }

// Send queues a frame without blocking. A peer that does not drain its
// queue is closed, it must not slow down the rest of the room.
func (c *Connection) Send(_ context.Context, frame domain.OutboundFrame) error {
	if !c.Open() {
		return errors.Connection("send", errors.ErrConnectionClosed)
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return errors.Connection("send", err)
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("Slow consumer, closing connection", "queued", len(c.send))
		go c.Close(websocket.ClosePolicyViolation, "too slow")
		return errors.Connection("send", errors.ErrSlowConsumer)
	}
}

// Serve runs the connection until the peer leaves or Close is called.
func (c *Connection) Serve(ctx context.Context) {
	if !c.state.CompareAndSwap(int32(domain.Connecting), int32(domain.Open)) {
		return
	}
	c.log.Debug("Connection open")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	go c.writePump()
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.cfg.MaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				c.log.Warn("Frame too large, closing connection", "limit", c.cfg.MaxFrameSize)
				c.Close(websocket.CloseMessageTooBig, "frame too large")
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("Connection lost", "error", err)
			}
			c.Close(websocket.CloseNormalClosure, "")
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Warn("Binary frame received, closing connection")
			c.Close(websocket.CloseUnsupportedData, "text frames only")
			return
		}
		if !c.Open() {
			return
		}
		if err := c.orchestrator.HandleFrame(ctx, c, data); err != nil {
			c.log.Warn("Closing connection", "error", err)
			c.Close(websocket.ClosePolicyViolation, closeReason(err))
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.Close(websocket.CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				c.Close(websocket.CloseGoingAway, "")
				return
			}
		}
	}
}

// Close tears the connection down once, whoever notices first. The
// participant leaves the room before Close returns.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(domain.Closing))
		close(c.done)

		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.conn.Close()
		c.state.Store(int32(domain.Closed))

		c.orchestrator.Leave(context.Background(), c.handle)
		if c.onClose != nil {
			c.onClose(c)
		}
		c.log.Debug("Connection closed", "code", code, "reason", reason)
	})
}

func closeReason(err error) string {
	if errors.KindOf(err) == errors.KindRegistryInvariant {
		return "already joined"
	}
	return "internal error"
}
