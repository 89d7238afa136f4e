package worker

import "time"

// Kind identifies a task type handled by the worker.
type Kind string

const (
	KindCollect     Kind = "collect"
	KindCompareOnly Kind = "compare_only"
	KindBanCurrent  Kind = "ban_current"
	KindAntiCheat   Kind = "anticheat_check"
	KindFetchStats  Kind = "fetch_stats"
)

// Task is one unit of work submitted to the worker.
type Task struct {
	ID          string
	Kind        Kind
	SubmittedAt time.Time
}

// Status is the outcome class of a completed task.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result correlates a completed task with its outcome. Every submitted task
// yields exactly one Result; errors carry a human-readable message in Err.
type Result struct {
	TaskID  string
	Status  Status
	Payload any
	Err     string
}

// IsError reports whether the task failed.
func (r Result) IsError() bool {
	return r.Status == StatusError
}
