package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/paperloop/pkg/bus"
)

const (
	ComponentName = "stream"

	sendBufferSize = 256
	writeWait      = 5 * time.Second
)

// Message is the envelope written to every websocket client.
type Message struct {
	Topic     string    `json:"topic"`
	Seq       uint64    `json:"seq"`
	TimeStamp time.Time `json:"ts"`
	Payload   any       `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub relays bus events to websocket clients. A client whose send buffer
// fills up or whose write fails is dropped.
type Hub struct {
	logger *zap.Logger
	router *bus.Router
	topics []string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *zap.Logger, router *bus.Router, topics ...string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger.Named(ComponentName),
		router: router,
		topics: topics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes to the configured topics and returns the relay loop.
func (h *Hub) Attach() func(context.Context) error {
	subs := make([]*bus.Subscription, 0, len(h.topics))
	for _, topic := range h.topics {
		subs = append(subs, h.router.Subscribe(topic))
	}

	return func(ctx context.Context) error {
		defer h.closeAll()

		g, ctx := errgroup.WithContext(ctx)
		for _, sub := range subs {
			g.Go(func() error {
				defer sub.Close()
				return h.relay(ctx, sub)
			})
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (h *Hub) relay(ctx context.Context, sub *bus.Subscription) error {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrSubscriptionClosed) {
				return nil
			}
			return err
		}
		h.Broadcast(Message{
			Topic:     ev.Topic,
			Seq:       ev.Seq,
			TimeStamp: ev.TimeStamp,
			Payload:   ev.Payload,
		})
	}
}

// Broadcast encodes msg once and queues it for every connected client.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("unable to encode event", zap.String("topic", msg.Topic), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping slow client", zap.String("remote", c.conn.RemoteAddr().String()))
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades incoming requests to websocket connections.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &client{
			conn: conn,
			send: make(chan []byte, sendBufferSize),
		}

		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		h.logger.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

		go h.writePump(c)
		go h.readPump(c)
	})
}

func (h *Hub) writePump(c *client) {
	defer func() {
		_ = c.conn.Close()
	}()

	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readPump discards inbound frames and notices when the peer goes away.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
		h.logger.Debug("client disconnected", zap.String("remote", c.conn.RemoteAddr().String()))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
