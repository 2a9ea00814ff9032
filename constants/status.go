package constants

// TaskStatus is the lifecycle state of an extraction task.
type TaskStatus string

// Stable values (returned verbatim by the status endpoint).
const (
	TaskStatusPending    TaskStatus = "pending"    // created, not yet picked up
	TaskStatusProcessing TaskStatus = "processing" // a worker owns it
	TaskStatusCompleted  TaskStatus = "completed"  // terminal, result holds text
	TaskStatusError      TaskStatus = "error"      // terminal, result holds message
	TaskStatusTimeout    TaskStatus = "timeout"    // terminal, deadline passed
)

// IsTerminal reports whether no further transition can leave s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusError, TaskStatusTimeout:
		return true
	}
	return false
}
