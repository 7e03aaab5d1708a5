package usecase

import (
	"context"
	"time"

	"planity/domain"
	"planity/repository"
)

// GetWeeklyTaskStats aggregates completion statistics over the live task
// list. Now is injectable for tests and defaults to time.Now.
type GetWeeklyTaskStats struct {
	Repo *repository.Repository
	Now  func() time.Time
}

// Observe emits fresh statistics on every task list change.
func (uc GetWeeklyTaskStats) Observe(ctx context.Context) <-chan domain.TaskStats {
	in := uc.Repo.ObserveTasks(ctx)
	out := make(chan domain.TaskStats, 1)
	now := uc.Now
	if now == nil {
		now = time.Now
	}
	go func() {
		defer close(out)
		for tasks := range in {
			select {
			case out <- computeStats(tasks, now()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// computeStats partitions tasks into completed and pending, then buckets the
// completed ones from the trailing 7-day window by weekday. Counts for
// Completed and Pending are all-time, not windowed. Tasks whose date string
// does not parse are excluded from the windowed buckets only.
func computeStats(tasks []domain.Task, now time.Time) domain.TaskStats {
	stats := domain.TaskStats{Weekly: make([]domain.DayCount, 7)}

	windowEnd := dayOf(now)
	windowStart := windowEnd.AddDate(0, 0, -6)
	buckets := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := windowStart.AddDate(0, 0, i)
		label := day.Format("Mon")
		stats.Weekly[i] = domain.DayCount{Day: label}
		buckets[label] = i
	}

	for _, t := range tasks {
		switch {
		case t.Completed():
			stats.Completed++
		case t.Pending():
			stats.Pending++
		default:
			continue
		}
		if !t.Completed() {
			continue
		}
		d, ok := t.ParseDate()
		if !ok {
			continue
		}
		d = dayOf(d)
		if d.Before(windowStart) || d.After(windowEnd) {
			continue
		}
		stats.Weekly[buckets[d.Format("Mon")]].Count++
	}
	return stats
}

// dayOf truncates to calendar-day precision in UTC, matching the precision of
// parsed task date strings. The window is inclusive on both ends.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
