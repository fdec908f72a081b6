package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag/model"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(model.Event{Name: model.EventNodeAdded, Namespace: "default"})

	select {
	case ev := <-s1.Events:
		assert.Equal(t, model.EventNodeAdded, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber 1")
	}
	select {
	case ev := <-s2.Events:
		assert.Equal(t, model.EventNodeAdded, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber 2")
	}
}

func TestPublish_DropsNewestWhenSubscriberBufferFull(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < subscriberCapacity+10; i++ {
		b.Publish(model.Event{Name: model.EventNodeAdded})
	}

	assert.Len(t, sub.Events, subscriberCapacity)
}

func TestClose_UnregistersAndClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.Events
	assert.False(t, ok)
}

func TestSubscriberCount_TracksLiveSubscribers(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.SubscriberCount())

	s1 := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	s2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	s1.Close()
	assert.Equal(t, 1, b.SubscriberCount())
	s2.Close()
}
