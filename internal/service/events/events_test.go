package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"possumtracker/internal/config"
	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/service/session"
)

// ========================================
// Fakes
// ========================================

type fakeViewers struct {
	mu     sync.Mutex
	events []dto.VisitEvent
}

func (v *fakeViewers) BroadcastJSON(msg interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, msg.(dto.VisitEvent))
}

type fakeBroker struct {
	mu     sync.Mutex
	events []dto.VisitEvent
	err    error
}

func (b *fakeBroker) Publish(ev dto.VisitEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

type fakeFeeder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeFeeder) Trigger(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

// ========================================
// Notifier Tests
// ========================================

func TestNotifier_FansOut(t *testing.T) {
	viewers, broker, feeder := &fakeViewers{}, &fakeBroker{}, &fakeFeeder{}
	n := NewNotifier(viewers, broker, feeder, logger.NewNop())
	at := time.Date(2025, 3, 3, 22, 0, 0, 0, time.UTC)

	n.VisitOpened(1, at)
	n.VisitClosed(1, at.Add(time.Minute), session.ReasonNoMotion)
	n.VisitFinalized(dto.VisitEvent{Type: dto.VisitFinalized, VisitID: 1, TaskID: "task"})
	n.Wait()

	if len(viewers.events) != 3 {
		t.Fatalf("Expected 3 viewer events, got %d", len(viewers.events))
	}
	if viewers.events[1].EndReason != "no_motion" {
		t.Errorf("Expected close reason no_motion, got %q", viewers.events[1].EndReason)
	}
	if len(broker.events) != 3 {
		t.Errorf("Expected 3 broker events, got %d", len(broker.events))
	}
	if feeder.calls != 1 {
		t.Errorf("Expected the feeder to be triggered once, got %d", feeder.calls)
	}
}

func TestNotifier_BrokerFailureIsLoggedOnly(t *testing.T) {
	viewers := &fakeViewers{}
	n := NewNotifier(viewers, &fakeBroker{err: errors.New("offline")}, nil, logger.NewNop())

	n.VisitOpened(2, time.Now())
	n.Wait()

	if len(viewers.events) != 1 {
		t.Errorf("Viewers should still get the event, got %d", len(viewers.events))
	}
}

func TestNotifier_AllOptional(t *testing.T) {
	n := NewNotifier(nil, nil, nil, logger.NewNop())
	n.VisitOpened(1, time.Now())
	n.VisitClosed(1, time.Now(), session.ReasonTimeout)
	n.Wait()
}

// ========================================
// Feeder Tests
// ========================================

func TestFeeder_Trigger(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{"opened", "BOX_OPENED", false},
		{"opened with newline", "BOX_OPENED\n", false},
		{"busy", "BUSY", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			err := NewFeeder(srv.URL + "/open").Trigger(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFeeder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := NewFeeder(url).Trigger(context.Background()); err == nil {
		t.Error("Expected an unreachable feeder to fail")
	}
}

// ========================================
// MQTT Tests
// ========================================

func TestMQTTEmitter_PublishWhileDisconnected(t *testing.T) {
	e := NewMQTTEmitter(config.EventsConfig{MQTTTopic: "possum/visits"}, logger.NewNop())

	if err := e.Publish(dto.VisitEvent{Type: dto.VisitOpened}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if _, failed := e.Stats(); failed != 1 {
		t.Errorf("Expected 1 failed publish, got %d", failed)
	}
	e.Disconnect()
}
