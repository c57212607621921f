package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"possumtracker/internal/logger"
)

// ========================================
// Fakes
// ========================================

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	err      error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) (*HubService, context.CancelFunc) {
	t.Helper()
	hub := NewHubService(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ========================================
// Hub Tests
// ========================================

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub, _ := startHub(t)
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(a)
	hub.Register(b)

	waitFor(t, func() bool { return hub.GetClientCount() == 2 })

	hub.BroadcastJSON(map[string]string{"type": "visit_opened"})
	waitFor(t, func() bool { return a.received() == 1 && b.received() == 1 })
}

func TestHub_FailingClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	bad := &fakeConn{err: errors.New("broken pipe")}
	hub.Register(bad)

	hub.Broadcast([]byte("frame"))
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })
	if !bad.isClosed() {
		t.Error("Failing client should be closed")
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, _ := startHub(t)
	c := &fakeConn{}
	hub.Register(c)
	hub.Unregister(c)

	waitFor(t, func() bool { return hub.GetClientCount() == 0 && c.isClosed() })
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	c := &fakeConn{}
	hub.Register(c)

	cancel()
	waitFor(t, c.isClosed)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHubService(logger.NewNop())

	sent := 0
	for i := 0; i < broadcastBuffer+5; i++ {
		if hub.Broadcast([]byte("x")) {
			sent++
		}
	}
	if sent != broadcastBuffer {
		t.Errorf("Expected %d queued messages, got %d", broadcastBuffer, sent)
	}
}

func TestHub_RegisterAfterStop(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()
	<-hub.done

	c := &fakeConn{}
	hub.Register(c)
	hub.Unregister(c)
	if !c.isClosed() {
		t.Error("Viewer registered after shutdown should be closed")
	}
}
