package messaging

import (
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sudo-init-do/bazaar/internal/logger"
)

const (
	defaultSendBuffer = 32
	sequenceStripes   = 64
)

// Client is one live socket. Frames queue on send and a write pump drains
// them; a client whose queue is full is dropped rather than waited for.
type Client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	group string
	once  sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

func listingKey(id string) string { return "listing:" + id }
func userKey(id string) string    { return "user:" + id }

// Hub keeps listing groups and user groups of clients.
type Hub struct {
	mu         sync.RWMutex
	groups     map[string]map[*Client]struct{}
	sequencers [sequenceStripes]sync.Mutex
	sendBuffer int
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{groups: make(map[string]map[*Client]struct{}), sendBuffer: sendBuffer}
}

func (h *Hub) join(group string, conn *websocket.Conn) *Client {
	c := &Client{id: uuid.NewString(), conn: conn, send: make(chan []byte, h.sendBuffer), group: group}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	logger.Debug("ws client %s joined %s", c.id, group)
	return c
}

// JoinListing subscribes conn to a listing's message broadcasts.
func (h *Hub) JoinListing(listingID string, conn *websocket.Conn) *Client {
	return h.join(listingKey(listingID), conn)
}

// JoinUser subscribes conn to a user's personal channel.
func (h *Hub) JoinUser(userID string, conn *websocket.Conn) *Client {
	return h.join(userKey(userID), conn)
}

// Leave unsubscribes c and closes its queue. Safe to call more than once.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if members, ok := h.groups[c.group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, c.group)
		}
	}
	c.close()
}

// publish queues b for every member of group. Sends and closes both happen
// under mu, so a queue is never written after it is closed.
func (h *Hub) publish(group string, frame any) {
	b, err := json.Marshal(frame)
	if err != nil {
		logger.Error("ws encode frame for %s: %v", group, err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.groups[group] {
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		logger.Warn("ws client %s on %s is too slow, dropping", c.id, group)
		h.removeLocked(c)
	}
	h.mu.Unlock()
}

func (h *Hub) BroadcastListing(listingID string, frame any) {
	h.publish(listingKey(listingID), frame)
}

// PushToUser delivers frame to every socket the user has open.
func (h *Hub) PushToUser(userID string, frame any) {
	h.publish(userKey(userID), frame)
}

// Send queues frame for c alone. It is dropped when c has left or its queue is full.
func (h *Hub) Send(c *Client, frame any) {
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.groups[c.group][c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// Sequence runs fn while holding the listing's ordering lock. Persisting and
// broadcasting inside fn keeps broadcast order equal to history order.
func (h *Hub) Sequence(listingID string, fn func() error) error {
	f := fnv.New32a()
	_, _ = f.Write([]byte(listingID))
	mu := &h.sequencers[f.Sum32()%sequenceStripes]
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// Subscribers reports how many clients are in the listing group.
func (h *Hub) Subscribers(listingID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[listingKey(listingID)])
}
