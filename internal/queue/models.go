package queue

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle of an operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is the error message set on operations interrupted by a
// daemon restart.
const DaemonStopReason = "daemon stopped before the operation finished"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == value {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether the operation has finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Operation is a unit of asynchronous work.
type Operation struct {
	ID           string          `json:"operationId"`
	Kind         string          `json:"kind"`
	ProjectID    string          `json:"projectId"`
	Status       Status          `json:"status"`
	Progress     string          `json:"progress,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorKind    string          `json:"errorKind,omitempty"`
	ErrorMessage string          `json:"message,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	CompletedAt  time.Time       `json:"completedAt,omitzero"`
}

// Summary aggregates operation counts per status.
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
