package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains lesson_id -> set of console connections and broadcasts
// messages. Redis pub/sub carries events between instances.
type Hub struct {
	lessons  map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes lesson events for other instances.
type RedisPublisher interface {
	PublishLessonEvent(lessonID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to lesson channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeLesson(lessonID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis sides may be nil for a
// single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		lessons:  make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a lesson room. Starts the Redis subscription for
// the lesson on its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.lessons[c.LessonID] == nil {
		h.lessons[c.LessonID] = make(map[string]*Client)
		if h.redisSub != nil {
			lessonID := c.LessonID
			cancel, err := h.redisSub.SubscribeLesson(lessonID, func(event string, payload []byte) {
				h.BroadcastToLesson(lessonID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("lesson subscribe failed", zap.String("lesson_id", lessonID.String()), zap.Error(err))
			} else {
				h.subs[lessonID] = cancel
			}
		}
	}
	h.lessons[c.LessonID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("console joined lesson", zap.String("client_id", c.ID), zap.String("lesson_id", c.LessonID.String()))
}

// Unregister removes a client. The Redis subscription is cancelled when the
// last client of a lesson leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.lessons[c.LessonID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.lessons, c.LessonID)
			if cancel, ok := h.subs[c.LessonID]; ok {
				cancel()
				delete(h.subs, c.LessonID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("console left lesson", zap.String("client_id", c.ID), zap.String("lesson_id", c.LessonID.String()))
}

// BroadcastToLesson sends a message to the local clients of a lesson.
func (h *Hub) BroadcastToLesson(lessonID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.lessons[lessonID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every instance. With Redis configured the
// subscriber callback performs the local broadcast, so clients get it once.
func (h *Hub) Publish(lessonID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		err := h.redis.PublishLessonEvent(lessonID, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("redis publish failed, broadcasting locally", zap.String("event", event), zap.Error(err))
	}
	h.BroadcastToLesson(lessonID, event, json.RawMessage(data))
}

// ClientCount returns the number of consoles watching a lesson.
func (h *Hub) ClientCount(lessonID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lessons[lessonID])
}
