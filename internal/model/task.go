package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusComplete   Status = "complete"
)

// ParseStatus accepts only the two known status values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIncomplete, StatusComplete:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// TimeLayout is the on-disk timestamp form. It sorts lexically in time order.
const TimeLayout = "2006-01-02 15:04:05.000000"

// parseLayout also accepts timestamps written without a fractional part.
const parseLayout = "2006-01-02 15:04:05.999999"

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime; an empty string yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(parseLayout, s, time.Local)
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// Validate checks the completedAt/status invariant.
func (t Task) Validate() error {
	switch {
	case t.Status == StatusComplete && t.CompletedAt.IsZero():
		return fmt.Errorf("task %s is complete but has no completion time", t.ID)
	case t.Status != StatusComplete && !t.CompletedAt.IsZero():
		return fmt.Errorf("task %s is %s but has a completion time", t.ID, t.Status)
	}
	return nil
}

type TaskFilter struct {
	Status *Status
}

func (f TaskFilter) Match(t Task) bool {
	return f.Status == nil || t.Status == *f.Status
}
