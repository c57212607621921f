package events

import (
	"context"
	"sync"
	"time"

	"possumtracker/internal/dto"
	"possumtracker/internal/logger"
	"possumtracker/internal/service/session"
)

// Publisher sends an event to a broker.
type Publisher interface {
	Publish(ev dto.VisitEvent) error
}

// Broadcaster pushes a JSON message to live viewers.
type Broadcaster interface {
	BroadcastJSON(v interface{})
}

// Trigger fires an external device.
type Trigger interface {
	Trigger(ctx context.Context) error
}

// Notifier fans visit events out to viewers, the broker and the feeder.
// Any of them may be nil. Broker and feeder calls run on their own
// goroutines so the capture loop never waits on the network.
type Notifier struct {
	viewers Broadcaster
	broker  Publisher
	feeder  Trigger
	logger  *logger.Logger
	wg      sync.WaitGroup
}

func NewNotifier(viewers Broadcaster, broker Publisher, feeder Trigger, log *logger.Logger) *Notifier {
	return &Notifier{viewers: viewers, broker: broker, feeder: feeder, logger: log}
}

func (n *Notifier) VisitOpened(visitID int64, at time.Time) {
	n.emit(dto.VisitEvent{Type: dto.VisitOpened, VisitID: visitID, At: at})

	if n.feeder == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.feeder.Trigger(context.Background()); err != nil {
			n.logger.Error("Feeder trigger for visit %d failed: %v", visitID, err)
			return
		}
		n.logger.Info("Feeder confirmed: BOX_OPENED for visit %d", visitID)
	}()
}

func (n *Notifier) VisitClosed(visitID int64, at time.Time, reason session.CloseReason) {
	n.emit(dto.VisitEvent{Type: dto.VisitClosed, VisitID: visitID, At: at, EndReason: string(reason)})
}

func (n *Notifier) VisitFinalized(ev dto.VisitEvent) {
	n.emit(ev)
}

// Wait blocks until pending broker and feeder calls return.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) emit(ev dto.VisitEvent) {
	if n.viewers != nil {
		n.viewers.BroadcastJSON(ev)
	}
	if n.broker == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.broker.Publish(ev); err != nil {
			n.logger.Warning("Failed to publish %s for visit %d: %v", ev.Type, ev.VisitID, err)
		}
	}()
}
