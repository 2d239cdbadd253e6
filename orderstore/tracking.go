package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/telemetry"
)

// TrackingEvent is the shipment-progress payload published by the courier
// integration.
type TrackingEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

var trackingStatuses = map[string]domain.OrderStatus{
	"confirmed":        domain.OrderConfirmed,
	"packing":          domain.OrderPacking,
	"shipped":          domain.OrderShipped,
	"in_transit":       domain.OrderInTransit,
	"out_for_delivery": domain.OrderOutForDelivery,
	"delivered":        domain.OrderDelivered,
	"cancelled":        domain.OrderCancelled,
}

// trackingReader is the slice of kafka.Reader the tracker uses.
type trackingReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Tracker consumes tracking events and applies them to the ledger. The
// ledger's forward-only rule makes the consumer safe against duplicated
// and out-of-order deliveries, so no offset gymnastics are needed here.
type Tracker struct {
	store   *Store
	reader  trackingReader
	log     *slog.Logger
	metrics *telemetry.Metrics
}

func NewTracker(store *Store, log *slog.Logger, metrics *telemetry.Metrics, brokers ...string) *Tracker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "order-tracking",
		GroupID:  "cartkit-tracker",
		MaxBytes: 10e6, // 10MB
	})
	return &Tracker{store: store, reader: reader, log: log, metrics: metrics}
}

// Run consumes until the context is cancelled or the reader is closed.
func (t *Tracker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !t.processMessage(ctx) {
			return
		}
	}
}

func (t *Tracker) Close() {
	if err := t.reader.Close(); err != nil {
		t.log.Warn("closing tracking reader failed", "err", err)
	}
}

// processMessage handles one read. The returned flag tells Run whether
// to keep going; a closed reader reports io.EOF and must stop the loop
// rather than spin on it.
func (t *Tracker) processMessage(ctx context.Context) bool {
	m, err := t.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return false
		}
		t.log.Warn("reading tracking message failed", "err", err)
		return true
	}

	var ev TrackingEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		t.log.Warn("tracking message malformed, skipping", "err", err)
		return true
	}
	if err := t.Apply(ctx, ev); err != nil {
		t.log.Warn("tracking event not applied", "order_id", ev.OrderID, "err", err)
	}
	return true
}

// Apply maps one tracking event onto the ledger. Unknown statuses and
// unknown orders are reported; regressions are silently absorbed.
func (t *Tracker) Apply(ctx context.Context, ev TrackingEvent) error {
	status, ok := trackingStatuses[strings.ToLower(ev.Status)]
	if !ok {
		return errors.New("orderstore: unknown tracking status " + ev.Status)
	}
	changed, err := t.store.UpdateStatus(ctx, ev.OrderID, status)
	if err != nil {
		return err
	}
	if changed {
		t.metrics.TrackingApplied.Inc()
	}
	return nil
}
