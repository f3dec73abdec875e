// ============================================================================
// Task Flow Error Definitions
// ============================================================================

package taskflow

import "errors"

var (
	// ErrInvalidState indicates an operation was attempted while the flow
	// was in the wrong running/stopped state for it (e.g. AddTask while
	// running, or Start while already running).
	ErrInvalidState = errors.New("taskflow: invalid state for this operation")

	// ErrInvalidRef indicates a TaskRef does not belong to this Flow.
	ErrInvalidRef = errors.New("taskflow: invalid task reference")

	// ErrDuplicateName indicates AddTask was called with a name already in use.
	ErrDuplicateName = errors.New("taskflow: task name already present")

	// ErrDuplicateDep indicates SetTaskDep was called for a dependency
	// already recorded on the task.
	ErrDuplicateDep = errors.New("taskflow: dependency already set")

	// ErrSelfDep indicates a task was set to depend on itself.
	ErrSelfDep = errors.New("taskflow: task cannot depend on itself")

	// ErrEmpty indicates Start was called with no tasks added.
	ErrEmpty = errors.New("taskflow: no tasks have been added")
)
