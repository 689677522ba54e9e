package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/pkg/redis"
)

// TopicTopDapps is the only subscription topic.
const TopicTopDapps = "dapps.top"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action    string          `json:"action"` // "call", "subscribe" or "unsubscribe"
	ID        string          `json:"id,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Topic     string          `json:"topic,omitempty"`
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"` // "result", "dapps.top", "subscribed", "unsubscribed", "info", "error"
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload"`
}

// clientSubscriptions tracks the topics a client is subscribed to.
type clientSubscriptions struct {
	mu     sync.RWMutex
	topics map[string]bool
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{topics: make(map[string]bool)}
}

func (cs *clientSubscriptions) subscribe(topic string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.topics[topic] = true
}

func (cs *clientSubscriptions) unsubscribe(topic string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.topics, topic)
}

func (cs *clientSubscriptions) isSubscribed(topic string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.topics[topic]
}

// HandleWebSocket upgrades the connection and serves tool calls and top-dApps updates.
//
// Protocol:
// Client sends: {"action": "call", "id": "1", "tool": "get_network_info", "arguments": {}}
// Client sends: {"action": "subscribe", "topic": "dapps.top"}
// Client sends: {"action": "unsubscribe", "topic": "dapps.top"}
//
// Server sends:
// - {"type": "result", "id": "1", "payload": {...}}
// - {"type": "dapps.top", "payload": {"days": 7, "dapps": [...], "updated_at": "..."}}
// - {"type": "subscribed", "payload": {"topic": "dapps.top"}}
// - {"type": "unsubscribed", "payload": {"topic": "dapps.top"}}
// - {"type": "error", "payload": {"message": "..."}}
//
// Calls run concurrently; results carry the id of the call they answer.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Metrics.WSConnected(1)
	defer c.App.Metrics.WSConnected(-1)
	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	send := make(chan ServerMessage, 256)

	// producers write to send; the writer drains it
	var producers, writer sync.WaitGroup

	guard := func(name string, fn func()) {
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in WebSocket goroutine",
					zap.String("goroutine", name),
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", r.RemoteAddr))
				cancel()
			}
		}()
		fn()
	}

	if c.App.RedisClient != nil {
		producers.Add(1)
		go func() {
			defer producers.Done()
			guard("redis", func() { c.subscribeToRedis(ctx, send, subs) })
		}()
	}

	producers.Add(1)
	go func() {
		defer producers.Done()
		guard("ping", func() { c.sendPings(ctx, conn) })
	}()

	writer.Add(1)
	go func() {
		defer writer.Done()
		guard("writer", func() { c.writeMessages(conn, send, cancel) })
	}()

	// blocks until the connection closes
	c.readClientMessages(ctx, conn, cancel, subs, send, &producers)

	cancel()
	producers.Wait()
	close(send)
	writer.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func push(ctx context.Context, send chan<- ServerMessage, msg ServerMessage) bool {
	select {
	case send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorMessage(id, msg string) ServerMessage {
	return ServerMessage{Type: "error", ID: id, Payload: map[string]string{"message": msg}}
}

// subscribeToRedis forwards top-dApps updates to the client while it is
// subscribed, reconnecting with backoff when the subscription drops.
func (c *Controller) subscribeToRedis(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := c.attemptRedisSubscription(ctx, send, subs)
		if ctx.Err() != nil {
			return
		}

		c.App.Logger.Warn("Redis subscription ended, will retry",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))

		if subs.isSubscribed(TopicTopDapps) {
			push(ctx, send, ServerMessage{Type: "error", Payload: map[string]interface{}{
				"message":     "Redis connection lost, attempting to reconnect...",
				"retryIn":     backoff.Seconds(),
				"recoverable": true,
			}})
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = calculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

func (c *Controller) attemptRedisSubscription(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) error {
	pubsub := c.App.RedisClient.Subscribe(ctx, redis.TopDappsChannel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Debug("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	return c.processRedisMessages(ctx, pubsub, send, subs)
}

func (c *Controller) processRedisMessages(ctx context.Context, pubsub *goredis.PubSub, send chan<- ServerMessage, subs *clientSubscriptions) error {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if !subs.isSubscribed(TopicTopDapps) {
				continue
			}
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				c.App.Logger.Error("Failed to parse Redis message",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}
			if !push(ctx, send, ServerMessage{Type: TopicTopDapps, Payload: payload}) {
				return ctx.Err()
			}
		}
	}
}

// calculateNextBackoff grows current by factor, caps it at max and applies
// +/- jitterFactor of jitter without going below current.
func calculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	withJitter := time.Duration(float64(next) + jitter)

	if withJitter < current {
		withJitter = current
	}
	if withJitter > max {
		withJitter = max
	}
	return withJitter
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the WebSocket connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage, cancel context.CancelFunc) {
	failed := false
	for msg := range send {
		if failed {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			failed = true
			cancel()
		}
	}
}

// readClientMessages handles client requests until the connection closes.
func (c *Controller) readClientMessages(
	ctx context.Context,
	conn *websocket.Conn,
	cancel context.CancelFunc,
	subs *clientSubscriptions,
	send chan<- ServerMessage,
	calls *sync.WaitGroup,
) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for ctx.Err() == nil {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
			return
		}

		switch msg.Action {
		case "call":
			if _, ok := c.App.Registry.Lookup(msg.Tool); !ok {
				push(ctx, send, errorMessage(msg.ID, "unknown tool: "+msg.Tool))
				continue
			}
			calls.Add(1)
			go func(m ClientMessage) {
				defer calls.Done()
				out := c.App.Registry.Invoke(ctx, m.Tool, m.Arguments)
				push(ctx, send, ServerMessage{Type: "result", ID: m.ID, Payload: out})
			}(msg)

		case "subscribe":
			if msg.Topic != TopicTopDapps {
				push(ctx, send, errorMessage(msg.ID, "unknown topic: "+msg.Topic))
				continue
			}
			if c.App.RedisClient == nil {
				push(ctx, send, errorMessage(msg.ID, "real-time updates not available (Redis disabled)"))
				continue
			}
			subs.subscribe(msg.Topic)
			push(ctx, send, ServerMessage{Type: "subscribed", ID: msg.ID, Payload: map[string]string{"topic": msg.Topic}})
			if snap := c.App.Latest.Load(); snap != nil {
				push(ctx, send, ServerMessage{Type: TopicTopDapps, Payload: snap})
			}

		case "unsubscribe":
			subs.unsubscribe(msg.Topic)
			push(ctx, send, ServerMessage{Type: "unsubscribed", ID: msg.ID, Payload: map[string]string{"topic": msg.Topic}})

		default:
			push(ctx, send, errorMessage(msg.ID, "unknown action: "+msg.Action))
		}
	}
}
