package store

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Task priorities. An empty priority means none was given.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task is a to-do item owned by a user.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Status    TaskStatus
	Priority  string
	DueDate   *time.Time
	CreatedTs int64
	UpdatedTs int64
}

// FindTask specifies the conditions for finding tasks.
type FindTask struct {
	ID     *string
	UserID *string
	Status *TaskStatus
}

// UpdateTask specifies a partial task update.
type UpdateTask struct {
	ID       string
	UserID   string
	Title    *string
	Status   *TaskStatus
	Priority *string
	DueDate  *time.Time
}

// DeleteTask specifies the task to delete.
type DeleteTask struct {
	ID     string
	UserID string
}

// PriorityRank orders priorities high first; unknown and empty priorities sort last.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// NormalizePriority maps free-form priority words to a known priority or "".
func NormalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "high", "urgent", "important", "critical", "asap":
		return PriorityHigh
	case "medium", "normal", "moderate":
		return PriorityMedium
	case "low", "minor", "whenever":
		return PriorityLow
	default:
		return ""
	}
}
