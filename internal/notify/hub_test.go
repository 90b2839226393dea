package notify

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func progressEvent(jobID uuid.UUID, percent int) events.Event {
	return events.Event{
		Type:    events.TypeProgress,
		JobID:   jobID,
		Percent: percent,
		Stage:   "visuals",
		At:      time.Now().UTC(),
	}
}

func recvOne(t *testing.T, sub *Subscription) events.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func TestFanOutToTopicSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	jobID := uuid.New()
	topic := events.JobTopic(jobID)

	sub1 := hub.Subscribe(topic)
	sub2 := hub.Subscribe(topic)
	other := hub.Subscribe(events.JobTopic(uuid.New()))

	hub.Publish(context.Background(), []string{topic}, progressEvent(jobID, 40))

	assert.Equal(t, 40, recvOne(t, sub1).Percent)
	assert.Equal(t, 40, recvOne(t, sub2).Percent)

	select {
	case ev := <-other.C:
		t.Fatalf("unrelated subscriber received event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLateJoinerGetsSnapshotReplay(t *testing.T) {
	hub := NewHub(testLogger())
	jobID := uuid.New()
	topic := events.JobTopic(jobID)

	// Job progresses to 80% with nobody listening.
	hub.Publish(context.Background(), []string{topic}, progressEvent(jobID, 80))

	// A client connecting now sees 80 immediately, as a snapshot.
	sub := hub.Subscribe(topic)
	ev := recvOne(t, sub)
	assert.Equal(t, events.TypeSnapshot, ev.Type)
	assert.Equal(t, 80, ev.Percent)
}

func TestTerminalEventReplaysUnchanged(t *testing.T) {
	hub := NewHub(testLogger())
	jobID := uuid.New()
	topic := events.JobTopic(jobID)

	hub.Publish(context.Background(), []string{topic}, events.Event{
		Type:      events.TypeCompleted,
		JobID:     jobID,
		Percent:   100,
		ResultKey: "result:xyz",
	})

	sub := hub.Subscribe(topic)
	ev := recvOne(t, sub)
	assert.Equal(t, events.TypeCompleted, ev.Type)
	assert.Equal(t, "result:xyz", ev.ResultKey)
}

func TestRetainedTerminalEventEvictedAfterGrace(t *testing.T) {
	hub := NewHub(testLogger())
	hub.retainGrace = 20 * time.Millisecond

	jobID := uuid.New()
	topic := events.JobTopic(jobID)

	hub.Publish(context.Background(), []string{topic}, events.Event{
		Type:    events.TypeCompleted,
		JobID:   jobID,
		Percent: 100,
		At:      time.Now().UTC(),
	})

	// Inside the grace window the outcome still replays.
	sub := hub.Subscribe(topic)
	assert.Equal(t, events.TypeCompleted, recvOne(t, sub).Type)
	hub.Unsubscribe(sub)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		_, retained := hub.retained[topic]
		hub.mu.RUnlock()
		if !retained {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.mu.RLock()
	_, retained := hub.retained[topic]
	hub.mu.RUnlock()
	require.False(t, retained, "terminal event must not be retained forever")

	// A late joiner past the window gets nothing replayed.
	late := hub.Subscribe(topic)
	select {
	case ev := <-late.C:
		t.Fatalf("unexpected replay after eviction: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEvictionSparesNewerEventOnSameTopic(t *testing.T) {
	hub := NewHub(testLogger())
	hub.retainGrace = 20 * time.Millisecond

	contentTopic := events.ContentTopic("abc123")

	// A job finishes, then a second job for the same content starts
	// before the first one's grace window lapses.
	hub.Publish(context.Background(), []string{contentTopic}, events.Event{
		Type: events.TypeCompleted, JobID: uuid.New(), Percent: 100, At: time.Now().UTC(),
	})
	second := progressEvent(uuid.New(), 10)
	hub.Publish(context.Background(), []string{contentTopic}, second)

	time.Sleep(100 * time.Millisecond)

	sub := hub.Subscribe(contentTopic)
	ev := recvOne(t, sub)
	assert.Equal(t, events.TypeSnapshot, ev.Type)
	assert.Equal(t, second.JobID, ev.JobID, "the live job's state must survive the finished job's eviction")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(testLogger())
	topic := events.JobTopic(uuid.New())

	sub := hub.Subscribe(topic)
	require.Equal(t, 1, hub.SubscriberCount(topic))

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount(topic))

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	hub := NewHub(testLogger())
	jobID := uuid.New()
	topic := events.JobTopic(jobID)

	slow := hub.Subscribe(topic)

	// Overflow the subscriber buffer without draining it. Publishing must
	// never block the pipeline.
	done := make(chan struct{})
	go func() {
		for i := 0; i <= subscriberBuffer+1; i++ {
			hub.Publish(context.Background(), []string{topic}, progressEvent(jobID, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, 0, hub.SubscriberCount(topic))

	// The slow subscriber's channel ends up closed after its buffered
	// backlog.
	for {
		if _, ok := <-slow.C; !ok {
			break
		}
	}
}

func TestMultiTopicSubscription(t *testing.T) {
	hub := NewHub(testLogger())
	jobID := uuid.New()
	jobTopic := events.JobTopic(jobID)
	contentTopic := events.ContentTopic("abc123")

	sub := hub.Subscribe(jobTopic, contentTopic)

	hub.Publish(context.Background(), []string{jobTopic, contentTopic}, progressEvent(jobID, 10))

	// The event arrives once per matching topic.
	first := recvOne(t, sub)
	second := recvOne(t, sub)
	assert.Equal(t, 10, first.Percent)
	assert.Equal(t, 10, second.Percent)

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount(jobTopic))
	assert.Equal(t, 0, hub.SubscriberCount(contentTopic))
}
