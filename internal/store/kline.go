package store

import (
	"errors"
	"sort"
	"sync"

	"datafeeder/internal/market"
)

// DefaultCapacity bounds streams whose granularity has no configured history size.
const DefaultCapacity = 100

// MemoryKlineStore is a bounded, deduplicated, time-ordered buffer per
// (instrument, granularity). Streams hash onto shards so writers to different
// streams rarely share a lock.
type MemoryKlineStore struct {
	capacity    map[market.Granularity]int
	instruments []string
	intervals   []market.Granularity
	shards      []klineShard
}

type klineShard struct {
	mu   sync.RWMutex
	data map[string][]market.Candle
}

const defaultShardCount = 32

// NewMemoryKlineStore registers every instrument × granularity stream up front.
// Writes to unregistered streams are rejected.
func NewMemoryKlineStore(instruments []string, intervals []market.Granularity, capacity map[market.Granularity]int) *MemoryKlineStore {
	return newMemoryKlineStore(defaultShardCount, instruments, intervals, capacity)
}

func newMemoryKlineStore(shards int, instruments []string, intervals []market.Granularity, capacity map[market.Granularity]int) *MemoryKlineStore {
	if shards <= 0 {
		shards = 1
	}
	out := &MemoryKlineStore{
		capacity:    make(map[market.Granularity]int, len(capacity)),
		instruments: append([]string(nil), instruments...),
		intervals:   append([]market.Granularity(nil), intervals...),
		shards:      make([]klineShard, shards),
	}
	for g, n := range capacity {
		out.capacity[g] = n
	}
	for i := range out.shards {
		out.shards[i] = klineShard{data: make(map[string][]market.Candle)}
	}
	for _, inst := range instruments {
		for _, g := range intervals {
			k := key(inst, g)
			out.shardFor(k).data[k] = nil
		}
	}
	return out
}

var ErrUnknownStream = errors.New("unknown instrument/granularity stream")

func key(instrument string, g market.Granularity) string { return instrument + "@" + string(g) }

func (s *MemoryKlineStore) shardFor(key string) *klineShard {
	idx := hashKey(key) % uint32(len(s.shards))
	return &s.shards[idx]
}

func (s *MemoryKlineStore) capFor(g market.Granularity) int {
	if n := s.capacity[g]; n > 0 {
		return n
	}
	return DefaultCapacity
}

// ReplaceAll swaps the stream's contents for candles, sorted oldest first,
// deduplicated by timestamp and trimmed to capacity from the old end.
func (s *MemoryKlineStore) ReplaceAll(instrument string, g market.Granularity, candles []market.Candle) error {
	k := key(instrument, g)
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.data[k]; !ok {
		return ErrUnknownStream
	}
	dst := make([]market.Candle, len(candles))
	copy(dst, candles)
	sort.SliceStable(dst, func(i, j int) bool { return dst[i].Datetime.Before(dst[j].Datetime) })
	dst = dedupSorted(dst)
	if limit := s.capFor(g); len(dst) > limit {
		dst = dst[len(dst)-limit:]
	}
	sh.data[k] = dst
	return nil
}

// AppendOne inserts candle in time order unless its timestamp is already present,
// then drops the oldest entries beyond capacity.
func (s *MemoryKlineStore) AppendOne(instrument string, g market.Granularity, candle market.Candle) error {
	k := key(instrument, g)
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.data[k]
	if !ok {
		return ErrUnknownStream
	}
	idx := sort.Search(len(cur), func(i int) bool { return !cur[i].Datetime.Before(candle.Datetime) })
	if idx < len(cur) && cur[idx].Datetime.Equal(candle.Datetime) {
		return nil
	}
	cur = append(cur, market.Candle{})
	copy(cur[idx+1:], cur[idx:])
	cur[idx] = candle
	if limit := s.capFor(g); len(cur) > limit {
		cur = append([]market.Candle(nil), cur[len(cur)-limit:]...)
	}
	sh.data[k] = cur
	return nil
}

// ReadAll returns a copy of the stream, oldest first.
func (s *MemoryKlineStore) ReadAll(instrument string, g market.Granularity) []market.Candle {
	k := key(instrument, g)
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	cur := sh.data[k]
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out
}

// HasInstrument reports whether instrument was registered at construction.
func (s *MemoryKlineStore) HasInstrument(instrument string) bool {
	for _, inst := range s.instruments {
		if inst == instrument {
			return true
		}
	}
	return false
}

func (s *MemoryKlineStore) Instruments() []string {
	return append([]string(nil), s.instruments...)
}

// Snapshot returns every stream of instrument keyed by display granularity.
func (s *MemoryKlineStore) Snapshot(instrument string) map[string][]market.Candle {
	out := make(map[string][]market.Candle, len(s.intervals))
	for _, g := range s.intervals {
		out[g.Display()] = s.ReadAll(instrument, g)
	}
	return out
}

// Stats counts candles per instrument and display granularity.
func (s *MemoryKlineStore) Stats() map[string]map[string]int {
	out := make(map[string]map[string]int, len(s.instruments))
	for _, inst := range s.instruments {
		row := make(map[string]int, len(s.intervals))
		for _, g := range s.intervals {
			k := key(inst, g)
			sh := s.shardFor(k)
			sh.mu.RLock()
			row[g.Display()] = len(sh.data[k])
			sh.mu.RUnlock()
		}
		out[inst] = row
	}
	return out
}

func dedupSorted(cs []market.Candle) []market.Candle {
	if len(cs) < 2 {
		return cs
	}
	out := cs[:1]
	for _, c := range cs[1:] {
		if c.Datetime.Equal(out[len(out)-1].Datetime) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
