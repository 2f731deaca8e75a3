package sync

import (
	"fmt"
	"time"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/models"
)

// TaskState represents how the scan of a task ended
type TaskState string

const (
	// TaskCompleted indicates every readable path was compared
	TaskCompleted TaskState = "completed"
	// TaskCompletedWithErrors indicates some paths could not be read
	TaskCompletedWithErrors TaskState = "completed_with_errors"
	// TaskCancelled indicates the scan was stopped before the end
	TaskCancelled TaskState = "cancelled"
	// TaskFailed indicates the task could not be scanned at all
	TaskFailed TaskState = "failed"
)

// TaskResult is the outcome of scanning one task
type TaskResult struct {
	Task        models.Task
	Entries     []backup.Entry
	FailedPaths []string
	Counters    models.Counters
	State       TaskState
	// Status is the human readable summary of the scan
	Status   string
	Duration time.Duration
}

// finish sets the final state and summary of the result
func (r *TaskResult) finish(cancelled bool, start time.Time) {
	r.Duration = time.Since(start)
	items := r.Counters.Found.Total()

	switch {
	case r.State == TaskFailed:
		// Status already describes the failure
	case cancelled:
		r.State = TaskCancelled
		r.Status = fmt.Sprintf("cancelled after %d items", items)
	case len(r.FailedPaths) > 0:
		r.State = TaskCompletedWithErrors
		r.Status = fmt.Sprintf("%d items, %d unreadable paths", items, len(r.FailedPaths))
	default:
		r.State = TaskCompleted
		if items == 0 {
			r.Status = "up to date"
		} else {
			r.Status = fmt.Sprintf("%d items", items)
		}
	}
}
