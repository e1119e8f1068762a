package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu       sync.Mutex
	msgs     [][]byte
	closed   bool
	deadline time.Time
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestRealtimeHubNotify(t *testing.T) {
	hub := NewRealtimeHub()
	mine, other := &fakeConn{}, &fakeConn{}
	a := &WSClient{UserID: "u1", Conn: mine}
	b := &WSClient{UserID: "u2", Conn: other}
	hub.Register(a)
	hub.Register(b)

	hub.Notify("u1", EventFoodLogCreated, "food_log", map[string]string{"id": "log-1"})
	if len(mine.msgs) != 1 || len(other.msgs) != 0 {
		t.Fatalf("messages = %d/%d", len(mine.msgs), len(other.msgs))
	}
	var got struct {
		Kind    string            `json:"kind"`
		FoodLog map[string]string `json:"food_log"`
	}
	if err := json.Unmarshal(mine.msgs[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != EventFoodLogCreated || got.FoodLog["id"] != "log-1" {
		t.Fatalf("message = %s", mine.msgs[0])
	}

	hub.Unregister(a)
	if !mine.closed || hub.Connected("u1") != 0 || hub.Connected("u2") != 1 {
		t.Fatalf("unregister: closed=%v u1=%d u2=%d", mine.closed, hub.Connected("u1"), hub.Connected("u2"))
	}
}

// stalledConn never drains: every write blocks until its deadline passes.
type stalledConn struct {
	fakeConn
}

func (c *stalledConn) WriteMessage(int, []byte) error {
	c.mu.Lock()
	d := c.deadline
	c.mu.Unlock()
	if d.IsZero() {
		select {}
	}
	time.Sleep(time.Until(d))
	return errors.New("i/o timeout")
}

func TestRealtimeHubStalledSocket(t *testing.T) {
	hub := NewRealtimeHub()
	stuck := &stalledConn{}
	healthy := &fakeConn{}
	hub.Register(&WSClient{UserID: "u1", Conn: stuck, WriteTimeout: 20 * time.Millisecond})
	hub.Register(&WSClient{UserID: "u1", Conn: healthy})

	start := time.Now()
	hub.Notify("u1", EventFoodLogCreated, "food_log", map[string]string{"id": "log-1"})
	if took := time.Since(start); took > time.Second {
		t.Fatalf("notify blocked for %v", took)
	}
	if len(healthy.msgs) != 1 || healthy.deadline.IsZero() {
		t.Fatalf("healthy socket: msgs=%d deadline=%v", len(healthy.msgs), healthy.deadline)
	}
	if !stuck.closed || hub.Connected("u1") != 1 {
		t.Fatalf("stalled socket kept: closed=%v connected=%d", stuck.closed, hub.Connected("u1"))
	}
}
