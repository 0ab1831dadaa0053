package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/latemark-go-api/internal/dto"
)

func TestFeedDeliversToLocalSubscribers(t *testing.T) {
	svc := NewFeedService(nil, "", nil, zerolog.Nop())

	events, cleanup := svc.Subscribe()
	defer cleanup()

	svc.Publish(dto.LedgerEvent{
		Type:   dto.FeedEventMarkedLate,
		RollNo: "22A81A0501",
		Name:   "Ananya Rao",
	})

	select {
	case event := <-events:
		require.Equal(t, dto.FeedEventMarkedLate, event.Type)
		require.Equal(t, "22A81A0501", event.RollNo)
	case <-time.After(time.Second):
		t.Fatal("expected feed event")
	}
}

func TestFeedFanOutReachesEverySubscriber(t *testing.T) {
	svc := NewFeedService(nil, "", nil, zerolog.Nop())

	first, cleanupFirst := svc.Subscribe()
	second, cleanupSecond := svc.Subscribe()
	defer cleanupFirst()
	defer cleanupSecond()

	svc.Publish(dto.LedgerEvent{Type: dto.FeedEventFinePaid, RollNo: "22A81A0501"})

	for _, events := range []<-chan dto.LedgerEvent{first, second} {
		select {
		case event := <-events:
			require.Equal(t, dto.FeedEventFinePaid, event.Type)
		case <-time.After(time.Second):
			t.Fatal("expected feed event on every subscriber")
		}
	}
}

func TestFeedUnsubscribeClosesChannel(t *testing.T) {
	svc := NewFeedService(nil, "", nil, zerolog.Nop())

	events, cleanup := svc.Subscribe()
	cleanup()

	_, open := <-events
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	svc.Publish(dto.LedgerEvent{Type: dto.FeedEventLateUndone, RollNo: "22A81A0501"})
}

func TestFeedDropsEventsForSlowSubscribers(t *testing.T) {
	svc := NewFeedService(nil, "", nil, zerolog.Nop())

	events, cleanup := svc.Subscribe()
	defer cleanup()

	for i := 0; i < feedBufferSize+5; i++ {
		svc.Publish(dto.LedgerEvent{Type: dto.FeedEventMarkedLate})
	}

	received := 0
	for {
		select {
		case <-events:
			received++
		default:
			require.Equal(t, feedBufferSize, received)
			return
		}
	}
}
