package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

func TestProgressFeed_SubscribeRequiresOpenFeed(t *testing.T) {
	pf := NewProgressFeed()

	_, _, ok := pf.Subscribe("missing")
	assert.False(t, ok)

	pf.Publish(ProgressEvent{RequestID: "missing"})
	assert.False(t, pf.Active("missing"))
}

func TestProgressFeed_LatestEventFirst(t *testing.T) {
	pf := NewProgressFeed()
	pf.Open("r1")
	pf.Publish(ProgressEvent{RequestID: "r1", State: domain.StateTransferring, Transferred: 10, Total: 100})

	events, unsubscribe, ok := pf.Subscribe("r1")
	require.True(t, ok)
	defer unsubscribe()

	first := <-events
	assert.Equal(t, int64(10), first.Transferred)
	assert.False(t, first.Timestamp.IsZero())
}

func TestProgressFeed_SlowSubscriberGetsFinalEvent(t *testing.T) {
	pf := NewProgressFeed()
	pf.Open("r1")

	events, _, ok := pf.Subscribe("r1")
	require.True(t, ok)

	for i := 0; i < subscriberBuffer*3; i++ {
		pf.Publish(ProgressEvent{RequestID: "r1", Transferred: int64(i)})
	}
	pf.Publish(ProgressEvent{RequestID: "r1", State: domain.StateDelivered, Done: true})
	pf.Close("r1")

	var last ProgressEvent
	count := 0
	for ev := range events {
		last = ev
		count++
	}
	assert.LessOrEqual(t, count, subscriberBuffer)
	assert.True(t, last.Done)
	assert.Equal(t, domain.StateDelivered, last.State)
	assert.False(t, pf.Active("r1"))
}

func TestProgressFeed_Unsubscribe(t *testing.T) {
	pf := NewProgressFeed()
	pf.Open("r1")

	events, unsubscribe, ok := pf.Subscribe("r1")
	require.True(t, ok)
	unsubscribe()
	unsubscribe()

	<-events // latest event buffered before unsubscribe
	_, open := <-events
	assert.False(t, open)

	pf.Publish(ProgressEvent{RequestID: "r1"})
	pf.Close("r1")
}
