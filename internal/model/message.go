package model

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
	PriorityTest     Priority = "test"
)

// ParsePriority maps a producer supplied value onto a Priority.
// An empty value means normal.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PriorityNormal, nil
	case PriorityNormal, PriorityUrgent, PriorityCritical, PriorityTest:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", raw)
	}
}

// QueuedMessage is one alarm notification waiting for the dispatch loop.
// It is never mutated after Enqueue.
type QueuedMessage struct {
	Text       string
	GroupID    int64
	AlarmID    string
	Priority   Priority
	EnqueuedAt time.Time
}

// SendResult is the outcome of a single provider call.
type SendResult struct {
	Success     bool
	StatusText  string
	RawResponse string
	StatusCode  int
}
