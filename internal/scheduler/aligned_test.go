package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTimes(t *testing.T) {
	s := NewAlignedScheduler(time.Minute, 5*time.Second)
	at := func(h, m, sec int) time.Time { return time.Date(2024, 3, 1, h, m, sec, 0, time.UTC) }

	boundary, wake, wait := s.nextTimes(at(12, 14, 30))
	assert.Equal(t, at(12, 15, 0), boundary)
	assert.Equal(t, at(12, 15, 5), wake)
	assert.Equal(t, 35*time.Second, wait)

	boundary, wake, wait = s.nextTimes(at(12, 15, 2))
	assert.Equal(t, at(12, 15, 0), boundary, "still inside the offset of the current minute")
	assert.Equal(t, at(12, 15, 5), wake)
	assert.Equal(t, 3*time.Second, wait)

	boundary, _, wait = s.nextTimes(at(12, 15, 5))
	assert.Equal(t, at(12, 16, 0), boundary)
	assert.Equal(t, time.Minute, wait)
}

func TestNextTimesUsesUTC(t *testing.T) {
	s := NewAlignedScheduler(time.Hour, 0)
	loc := time.FixedZone("X", 5*3600+30*60)
	boundary, _, _ := s.nextTimes(time.Date(2024, 3, 1, 12, 10, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC), boundary)
}

func TestStartRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	s := NewAlignedScheduler(time.Hour, 0)
	s.RunImmediately = true
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var ticks []time.Time
	fired := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		s.Start(ctx, func(_ context.Context, tick time.Time) {
			mu.Lock()
			ticks = append(ticks, tick)
			mu.Unlock()
			fired <- struct{}{}
		})
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate run did not fire")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ticks, 1)
	assert.Equal(t, time.Duration(0), time.Duration(ticks[0].Minute())*time.Minute+time.Duration(ticks[0].Second())*time.Second)
}

func TestStartRejectsBadInterval(t *testing.T) {
	s := NewAlignedScheduler(0, 0)
	called := false
	s.Start(context.Background(), func(context.Context, time.Time) { called = true })
	assert.False(t, called)
}
