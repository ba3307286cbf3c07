package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRoomLifecycle(t *testing.T) {
	m := DefaultMetrics
	active := testutil.ToFloat64(m.RoomsActive)
	opened := testutil.ToFloat64(m.RoomsOpened)

	m.RecordRoomOpened()
	m.RecordRoomOpened()
	m.RecordRoomClosed()

	if got := testutil.ToFloat64(m.RoomsActive) - active; got != 1 {
		t.Errorf("expected active rooms delta 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.RoomsOpened) - opened; got != 2 {
		t.Errorf("expected opened rooms delta 2, got %v", got)
	}
}

func TestRecordKafkaPublish_CountsErrors(t *testing.T) {
	m := DefaultMetrics
	total := m.KafkaPublishTotal.WithLabelValues("metrics-test", "room.feed.updated")
	failed := m.KafkaPublishErrors.WithLabelValues("metrics-test", "room.feed.updated")

	m.RecordKafkaPublish("metrics-test", "room.feed.updated", nil, 0.01)
	m.RecordKafkaPublish("metrics-test", "room.feed.updated", errors.New("broker down"), 0.02)

	if got := testutil.ToFloat64(total); got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(failed); got != 1 {
		t.Errorf("expected 1 publish error, got %v", got)
	}
}

func TestRecordSubscriptions(t *testing.T) {
	m := DefaultMetrics
	before := testutil.ToFloat64(m.SubscriptionsActive)

	m.RecordSubscribe()
	m.RecordSubscribe()
	m.RecordUnsubscribe()

	if got := testutil.ToFloat64(m.SubscriptionsActive) - before; got != 1 {
		t.Errorf("expected active subscriptions delta 1, got %v", got)
	}
}
