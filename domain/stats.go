package domain

// DayCount is one bucket of the weekly completion histogram.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// TaskStats aggregates completion figures over the full task list.
//
// Completed and Pending are all-time counts. Weekly always holds exactly
// seven buckets covering the trailing window ending today, oldest day first,
// keyed by the short weekday name ("Sun".."Sat"); days without completions
// stay at zero.
type TaskStats struct {
	Completed int        `json:"completedTasks"`
	Pending   int        `json:"pendingTasks"`
	Weekly    []DayCount `json:"weeklyCompletion"`
}
