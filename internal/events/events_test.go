package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/models"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type recordingPublisher struct {
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.events = append(p.events, evt)
	return nil
}

type fakeNotifications struct {
	stored []*models.Notification
	err    error
}

func (f *fakeNotifications) InsertNotification(_ context.Context, n *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, n)
	return nil
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092,"))
	assert.Empty(t, ParseBrokers(""))
}

func TestKafkaPublisherKeysByRelatedID(t *testing.T) {
	writer := &fakeWriter{}
	p := &KafkaPublisher{writer: writer, topic: "uglies.events"}

	order := models.Order{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(), TotalAmount: 12.5}
	require.NoError(t, p.Publish(context.Background(), OrderCreated(order)))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, order.ID.Hex(), string(msg.Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeOrderCreated, decoded.Type)
	assert.Equal(t, order.UserID.Hex(), decoded.UserID)
	assert.Equal(t, 12.5, decoded.Payload["totalAmount"])
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, topic: "t"}
	err := p.Publish(context.Background(), New("x", primitive.NilObjectID, "", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestDispatcherNotifiesOrganizerOnTargetReached(t *testing.T) {
	store := &fakeNotifications{}
	next := &recordingPublisher{}
	d := NewDispatcher(store, next)

	campaign := models.Campaign{ID: primitive.NewObjectID(), OrganizerID: primitive.NewObjectID(), Title: "Maple St produce"}
	require.NoError(t, d.Publish(context.Background(), CampaignTargetReached(campaign)))

	require.Len(t, store.stored, 1)
	n := store.stored[0]
	assert.Equal(t, campaign.OrganizerID, n.UserID)
	assert.Equal(t, models.NotificationGroupBuying, n.Type)
	assert.Equal(t, campaign.ID.Hex(), n.RelatedID)
	assert.Contains(t, n.Message, "Maple St produce")
	assert.Len(t, next.events, 1)
}

func TestDispatcherNotifiesBuyerOnStatusChange(t *testing.T) {
	store := &fakeNotifications{}
	d := NewDispatcher(store, &recordingPublisher{})

	order := models.Order{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(), Status: models.OrderConfirmed}
	require.NoError(t, d.Publish(context.Background(), OrderStatusChanged(order, models.OrderPending)))

	require.Len(t, store.stored, 1)
	assert.Equal(t, models.NotificationOrderUpdate, store.stored[0].Type)
	assert.Contains(t, store.stored[0].Message, "confirmed")
}

func TestDispatcherForwardsWithoutNotifying(t *testing.T) {
	store := &fakeNotifications{}
	next := &recordingPublisher{}
	d := NewDispatcher(store, next)

	require.NoError(t, d.Publish(context.Background(), OrderCreated(models.Order{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID()})))
	assert.Empty(t, store.stored)
	assert.Len(t, next.events, 1)
}

func TestDispatcherForwardsWhenNotificationFails(t *testing.T) {
	next := &recordingPublisher{}
	d := NewDispatcher(&fakeNotifications{err: errors.New("db down")}, next)

	order := models.Order{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(), Status: models.OrderCancelled}
	require.NoError(t, d.Publish(context.Background(), OrderStatusChanged(order, models.OrderPending)))
	assert.Len(t, next.events, 1)
}
