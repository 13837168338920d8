package credential

import "time"

type KeyStats struct {
	RequestsToday      int        `json:"requests_today"`
	RequestsThisMinute int        `json:"requests_this_minute"`
	LastUsed           *time.Time `json:"last_used,omitempty"`
}

type Stats struct {
	TotalKeys   int                 `json:"total_keys"`
	DailyLimit  int                 `json:"daily_limit"`
	MinuteLimit int                 `json:"minute_limit"`
	Reserved    int                 `json:"reserved"`
	Denied      int                 `json:"denied"`
	KeyStats    map[string]KeyStats `json:"key_stats"`
}

// Stats reports counters as a reservation made now would see them. It never mutates the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn().UTC()
	dayRolled := utcDay(now).After(p.day)
	out := Stats{
		TotalKeys:   len(p.keys),
		DailyLimit:  p.limits.Daily,
		MinuteLimit: p.limits.PerMinute,
		Reserved:    p.reserved,
		Denied:      p.denied,
		KeyStats:    make(map[string]KeyStats, len(p.keys)),
	}
	for i, u := range p.keys {
		ks := KeyStats{RequestsToday: u.today, RequestsThisMinute: u.window}
		if dayRolled {
			ks.RequestsToday = 0
		}
		if u.windowStart.IsZero() || now.Sub(u.windowStart) >= Window {
			ks.RequestsThisMinute = 0
		}
		if !u.lastUsed.IsZero() {
			last := u.lastUsed
			ks.LastUsed = &last
		}
		out.KeyStats[slotLabel(i)] = ks
	}
	return out
}
