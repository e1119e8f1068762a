package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event kinds pushed to websocket clients.
const EventFoodLogCreated = "food_log.created"

// DefaultWriteTimeout bounds every socket write, so a stalled client delays
// a notification by at most this long.
const DefaultWriteTimeout = 5 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type WSClient struct {
	UserID string
	Conn   Conn
	// WriteTimeout defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

func (c *WSClient) send(messageType int, msg []byte) error {
	timeout := c.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.Conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, msg)
}

// Ping sends a websocket ping under the client's write lock.
func (c *WSClient) Ping() error { return c.send(websocket.PingMessage, nil) }

type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]struct{}
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[string]map[*WSClient]struct{})}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// Connected reports how many sockets a user has open.
func (h *RealtimeHub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Notify pushes {"kind": kind, <key>: payload} to every socket of userID.
// Sockets whose write fails are unregistered.
func (h *RealtimeHub) Notify(userID, kind, key string, payload any) {
	msg, err := json.Marshal(map[string]any{"kind": kind, key: payload})
	if err != nil {
		log.Printf("realtime: encode %s: %v", kind, err)
		return
	}
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		if err := c.send(websocket.TextMessage, msg); err != nil {
			// A socket that missed its deadline is unusable afterwards.
			log.Printf("realtime: push to %s failed, dropping socket: %v", userID, err)
			h.Unregister(c)
		}
	}
}
