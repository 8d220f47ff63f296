package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procure/db"
)

// Event types emitted to the notification/audit gateway.
const (
	EventAwarded       = "work_item.awarded"
	EventCancelled     = "work_order.cancelled"
	EventBillCertified = "work_item.bill_certified"
)

// Event is one lifecycle notification.
type Event struct {
	ID         uuid.UUID
	Type       string
	OccurredAt time.Time
	Fields     []zap.Field
}

// Dispatcher fans lifecycle events out to the audit log on a background
// goroutine. Publishing never blocks the request path; when the buffer is
// full the event is dropped and the drop is logged, since the core does not
// own delivery guarantees.
type Dispatcher struct {
	log    *zap.Logger
	events chan Event
	wg     sync.WaitGroup
	once   sync.Once

	// mu serialises sends against close(events) so a publish racing
	// Close cannot hit a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the background worker with the given buffer size.
func NewDispatcher(log *zap.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		log:    log,
		events: make(chan Event, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.events {
		fields := append([]zap.Field{
			zap.String("event_id", e.ID.String()),
			zap.Time("occurred_at", e.OccurredAt),
		}, e.Fields...)
		d.log.Info(e.Type, fields...)
	}
}

// Close stops the worker after draining buffered events.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) publish(eventType string, fields ...zap.Field) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	e := Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now(),
		Fields:     fields,
	}
	select {
	case d.events <- e:
	default:
		d.log.Warn("event buffer full, dropping event",
			zap.String("event_type", eventType),
			zap.String("event_id", e.ID.String()))
	}
}

func (d *Dispatcher) OnAwarded(item db.WorkItem, contract db.AwardOfContract) {
	d.publish(EventAwarded,
		zap.Int("work_item_id", item.ID),
		zap.Int("nit_id", item.NITID),
		zap.Int("contract_id", contract.ID),
		zap.Int("winning_bid_id", contract.BidID),
		zap.String("memo_number", contract.MemoNumber))
}

func (d *Dispatcher) OnCancelled(workOrderID int, reason string) {
	d.publish(EventCancelled,
		zap.Int("work_order_id", workOrderID),
		zap.String("reason", reason))
}

func (d *Dispatcher) OnBillCertified(item db.WorkItem, payment db.PaymentRecord) {
	d.publish(EventBillCertified,
		zap.Int("work_item_id", item.ID),
		zap.Int("payment_record_id", payment.ID),
		zap.String("bill_type", payment.BillType),
		zap.String("net_amount", payment.NetAmount.String()))
}

var _ Notifier = (*Dispatcher)(nil)
