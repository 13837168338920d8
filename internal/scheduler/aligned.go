// Package scheduler runs tasks on wall-clock boundaries.
package scheduler

import (
	"context"
	"time"

	"datafeeder/internal/logger"
)

// AlignedScheduler fires once per Interval at boundary+Offset (UTC). The task gets
// the boundary the tick belongs to and runs on its own goroutine, so a slow tick
// never delays the next one.
type AlignedScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// Start blocks until ctx is done.
func (s *AlignedScheduler) Start(ctx context.Context, task func(ctx context.Context, tick time.Time)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("AlignedScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.Offset < 0 || s.Offset >= s.Interval {
		logger.Warnf("AlignedScheduler: offset=%s outside [0,%s), clamp to 0", s.Offset, s.Interval)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	_, wakeAt, wait := s.nextTimes(startAt)
	logger.Infof("AlignedScheduler: started interval=%s offset=%s run_immediately=%v first_tick=%s (in %s)",
		s.Interval, s.Offset, s.RunImmediately, wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))

	if s.RunImmediately {
		go task(ctx, startAt.Truncate(s.Interval))
	}

	for {
		boundary, wakeAt, wait := s.nextTimes(s.nowFn().UTC())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		logger.Debugf("AlignedScheduler: tick boundary=%s woke=%s", boundary.Format(time.RFC3339), wakeAt.Format(time.RFC3339))
		go task(ctx, boundary)
	}
}

// nextTimes returns the next boundary whose wake time (boundary+Offset) is still ahead of now.
func (s *AlignedScheduler) nextTimes(now time.Time) (boundary, wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	boundary = now.Truncate(s.Interval)
	wakeAt = boundary.Add(s.Offset)
	if !wakeAt.After(now) {
		boundary = boundary.Add(s.Interval)
		wakeAt = boundary.Add(s.Offset)
	}
	return boundary, wakeAt, wakeAt.Sub(now)
}
