package realtime

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"justchat/internal/pkg/logx"
)

// maxMessageSize is the largest frame a client may send. Only typing frames are accepted.
const maxMessageSize = 1024

// ClientConfig holds the per-connection transport timings.
type ClientConfig struct {
	// WriteWait bounds a single frame write.
	WriteWait time.Duration

	// PongWait is how long the server waits for any frame or pong before dropping the client.
	PongWait time.Duration

	// PingPeriod is how often the server pings. Must be shorter than PongWait.
	PingPeriod time.Duration

	// SendBuffer is the outbound queue length.
	SendBuffer int
}

// DefaultClientConfig returns the production timings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 25 * time.Second,
		SendBuffer: 256,
	}
}

// Client is one websocket connection of an authenticated user.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	cfg    ClientConfig

	// send queues encoded frames for WritePump.
	send chan []byte

	// done is closed exactly once when the connection starts shutting down.
	done      chan struct{}
	closeOnce sync.Once

	// typingTo holds receivers with an open typing burst. Only ReadPump touches it.
	typingTo map[string]struct{}

	logger zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, cfg ClientConfig) *Client {
	id := uuid.NewString()

	return &Client{
		id:       id,
		userID:   userID,
		hub:      hub,
		conn:     conn,
		cfg:      cfg,
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
		typingTo: make(map[string]struct{}),
		logger: logx.Component("client").With().
			Str("conn_id", id).
			Str("user_id", userID).
			Logger(),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// UserID returns the owning user id.
func (c *Client) UserID() string { return c.userID }

// Send queues msg without blocking. A full queue marks the client as a slow
// consumer: it is closed and ErrSendQueueFull is returned.
func (c *Client) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, closing connection")
		c.Close()
		return ErrSendQueueFull
	}
}

// Close starts shutting the connection down. It is safe to call many times from
// any goroutine; WritePump sends a close frame and ReadPump then deregisters.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the client starts shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads frames until the connection fails, then deregisters the client.
// It must run on exactly one goroutine per client.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.logger.Error().Err(err).Msg("Failed to extend read deadline")
			return
		}

		c.processInbound(frame)
	}
}

// cleanupOnDisconnect closes any open typing bursts, deregisters the connection
// and releases the socket.
func (c *Client) cleanupOnDisconnect() {
	c.Close()

	for receiverID := range c.typingTo {
		c.hub.typing.Stop(c.userID, receiverID)
		delete(c.typingTo, receiverID)
	}

	c.hub.disconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}

	c.logger.Info().Msg("Client disconnected")
}

// processInbound handles one client frame. Malformed frames are logged and ignored.
func (c *Client) processInbound(frame []byte) {
	var inbound struct {
		Type    InboundType     `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	if err := json.Unmarshal(frame, &inbound); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	switch inbound.Type {
	case InboundTypingStart, InboundTypingStop:
		var payload TypingPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.logger.Warn().Err(err).Str("msg_type", string(inbound.Type)).Msg("Client sent invalid typing payload")
			return
		}
		c.handleTyping(payload.ReceiverID, inbound.Type == InboundTypingStart)

	default:
		c.logger.Warn().Str("msg_type", string(inbound.Type)).Msg("Client sent unsupported message type")
	}
}

func (c *Client) handleTyping(receiverID string, typing bool) {
	if receiverID == "" || receiverID == c.userID {
		return
	}

	if typing {
		c.typingTo[receiverID] = struct{}{}
		c.hub.typing.Start(c.userID, receiverID)
		return
	}

	delete(c.typingTo, receiverID)
	c.hub.typing.Stop(c.userID, receiverID)
}

// WritePump writes queued frames and periodic pings until the client closes or
// a write fails. It must run on exactly one goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// write sends one frame under the write deadline and reports whether the pump should continue.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if messageType != websocket.CloseMessage {
			c.logger.Info().Err(err).Int("frame_type", messageType).Msg("Error writing frame")
		}
		return false
	}

	return true
}
