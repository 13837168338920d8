package credential

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestPool(t *testing.T, keys []string, daily, minute int) (*Pool, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	p, err := NewPool(keys, Limits{Daily: daily, PerMinute: minute}, WithClock(clk.Now))
	require.NoError(t, err)
	return p, clk
}

func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool(nil, Limits{Daily: 1, PerMinute: 1})
	assert.Error(t, err)

	_, err = NewPool([]string{"a"}, Limits{Daily: 0, PerMinute: 1})
	assert.Error(t, err)

	_, err = NewPool([]string{"a", ""}, Limits{Daily: 1, PerMinute: 1})
	assert.ErrorContains(t, err, "key_2")
}

func TestReserveCountsWithinWindow(t *testing.T) {
	p, _ := newTestPool(t, []string{"A"}, 800, 8)

	for i := 1; i < 8; i++ {
		r, ok, _ := p.Reserve()
		require.True(t, ok)
		assert.Equal(t, "A", r.Key)
		assert.Equal(t, i, p.Stats().KeyStats["key_1"].RequestsThisMinute)
	}

	_, ok, _ := p.Reserve()
	require.True(t, ok, "eighth reservation is still within the limit")

	_, ok, wait := p.Reserve()
	assert.False(t, ok, "window is exhausted at minute_limit")
	assert.Equal(t, time.Minute, wait)
}

func TestReserveRotatesToFreshCredential(t *testing.T) {
	p, _ := newTestPool(t, []string{"A", "B"}, 800, 8)

	// A took eight rapid requests while B sat idle.
	now := p.nowFn()
	p.mu.Lock()
	p.keys[0].today = 8
	p.keys[0].window = 8
	p.keys[0].windowStart = now
	p.keys[0].lastUsed = now
	p.mu.Unlock()

	r, ok, _ := p.Reserve()
	require.True(t, ok, "B is unused and must be handed out once A is exhausted")
	assert.Equal(t, "B", r.Key)
	assert.Equal(t, 1, r.Slot)

	stats := p.Stats()
	assert.Equal(t, 8, stats.KeyStats["key_1"].RequestsThisMinute)
	assert.Equal(t, 1, stats.KeyStats["key_2"].RequestsThisMinute)
}

func TestReserveSpreadsLoadByWindowCount(t *testing.T) {
	p, _ := newTestPool(t, []string{"A", "B", "C"}, 800, 8)

	seen := map[string]int{}
	for i := 0; i < 9; i++ {
		r, ok, _ := p.Reserve()
		require.True(t, ok)
		seen[r.Key]++
	}
	assert.Equal(t, map[string]int{"A": 3, "B": 3, "C": 3}, seen)

	// Ties resolve by slot order.
	r, ok, _ := p.Reserve()
	require.True(t, ok)
	assert.Equal(t, "A", r.Key)
}

func TestReserveMinuteWindowRollover(t *testing.T) {
	p, clk := newTestPool(t, []string{"A"}, 800, 2)

	_, ok, _ := p.Reserve()
	require.True(t, ok)
	_, ok, _ = p.Reserve()
	require.True(t, ok)

	clk.Advance(30 * time.Second)
	_, ok, wait := p.Reserve()
	require.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	clk.Advance(31 * time.Second)
	r, ok, _ := p.Reserve()
	require.True(t, ok, "window opened 61s ago must reset before eligibility is checked")
	assert.Equal(t, "A", r.Key)
	assert.Equal(t, 1, p.Stats().KeyStats["key_1"].RequestsThisMinute)
	assert.Equal(t, 3, p.Stats().KeyStats["key_1"].RequestsToday)
}

func TestReserveDailyRollover(t *testing.T) {
	p, clk := newTestPool(t, []string{"A"}, 2, 8)

	_, ok, _ := p.Reserve()
	require.True(t, ok)
	_, ok, _ = p.Reserve()
	require.True(t, ok)

	clk.Advance(2 * time.Minute)
	_, ok, wait := p.Reserve()
	require.False(t, ok, "daily quota spent")
	assert.Equal(t, 11*time.Hour+58*time.Minute, wait, "daily exhaustion waits for UTC midnight")

	clk.Advance(12 * time.Hour)
	assert.Equal(t, 0, p.Stats().KeyStats["key_1"].RequestsToday)

	r, ok, _ := p.Reserve()
	require.True(t, ok, "new UTC day resets daily counters")
	assert.Equal(t, "A", r.Key)
	assert.Equal(t, 1, p.Stats().KeyStats["key_1"].RequestsToday)
}

func TestReserveWaitFloor(t *testing.T) {
	p, clk := newTestPool(t, []string{"A"}, 800, 1)

	_, ok, _ := p.Reserve()
	require.True(t, ok)
	clk.Advance(59*time.Second + 900*time.Millisecond)

	_, ok, wait := p.Reserve()
	require.False(t, ok)
	assert.Equal(t, MinWait, wait)
}

func TestReserveWaitIsMinimumAcrossKeys(t *testing.T) {
	p, clk := newTestPool(t, []string{"A", "B"}, 800, 1)

	_, ok, _ := p.Reserve()
	require.True(t, ok)
	clk.Advance(20 * time.Second)
	_, ok, _ = p.Reserve()
	require.True(t, ok)
	clk.Advance(10 * time.Second)

	_, ok, wait := p.Reserve()
	require.False(t, ok)
	assert.Equal(t, 30*time.Second, wait, "A's window closes first")
}

func TestRecordFailureRollsBack(t *testing.T) {
	p, clk := newTestPool(t, []string{"A"}, 800, 1)

	r, ok, _ := p.Reserve()
	require.True(t, ok)
	_, ok, _ = p.Reserve()
	require.False(t, ok)

	p.RecordFailure(r)
	stats := p.Stats().KeyStats["key_1"]
	assert.Equal(t, 0, stats.RequestsToday)
	assert.Equal(t, 0, stats.RequestsThisMinute)

	r, ok, _ = p.Reserve()
	require.True(t, ok)

	// After the window rolls, the rollback must not eat into the new window.
	clk.Advance(61 * time.Second)
	r2, ok, _ := p.Reserve()
	require.True(t, ok)
	p.RecordFailure(r)
	stats = p.Stats().KeyStats["key_1"]
	assert.Equal(t, 1, stats.RequestsThisMinute)
	assert.Equal(t, 1, stats.RequestsToday)

	p.RecordFailure(Reservation{Slot: 7, Key: "A"})
	p.RecordFailure(Reservation{Slot: 0, Key: "other", GrantedAt: r2.GrantedAt})
	assert.Equal(t, 1, p.Stats().KeyStats["key_1"].RequestsThisMinute)
}

func TestReserveNeverExceedsLimits(t *testing.T) {
	const daily, minute = 15, 4
	p, clk := newTestPool(t, []string{"A", "B", "C"}, daily, minute)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 5000; i++ {
		switch rng.IntN(4) {
		case 0:
			clk.Advance(time.Duration(rng.IntN(90)) * time.Second)
		case 1:
			if r, ok, _ := p.Reserve(); ok && rng.IntN(3) == 0 {
				p.RecordFailure(r)
			}
		default:
			p.Reserve()
		}
		p.mu.Lock()
		for _, u := range p.keys {
			require.LessOrEqual(t, u.today, daily)
			require.LessOrEqual(t, u.window, minute)
		}
		p.mu.Unlock()
	}
}

func TestReserveConcurrentNeverOverGrants(t *testing.T) {
	p, _ := newTestPool(t, []string{"A", "B"}, 800, 8)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := p.Reserve(); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, granted)
	stats := p.Stats()
	assert.Equal(t, 16, stats.Reserved)
	assert.Equal(t, 48, stats.Denied)
}

func TestStatsLabelsAndLastUsed(t *testing.T) {
	p, _ := newTestPool(t, []string{"secret-a", "secret-b"}, 800, 8)
	r, ok, _ := p.Reserve()
	require.True(t, ok)
	assert.Equal(t, "key_1", r.Label())

	stats := p.Stats()
	assert.Equal(t, 2, stats.TotalKeys)
	require.NotNil(t, stats.KeyStats["key_1"].LastUsed)
	assert.Nil(t, stats.KeyStats["key_2"].LastUsed)
	for label := range stats.KeyStats {
		assert.NotContains(t, label, "secret")
	}
}
