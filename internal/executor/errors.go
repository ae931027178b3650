package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel kinds for errors.Is checks across the orchestration pipeline.
var (
	ErrEmptyBatch        = errors.New("batch contains no tasks")
	ErrDuplicateTaskID   = errors.New("duplicate task id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrMissingReference  = errors.New("missing file reference")
	ErrTimeout           = errors.New("backend timed out")
	ErrBackendExecution  = errors.New("backend execution failed")
)

// DuplicateTaskIDError reports a batch declaring the same task id twice.
type DuplicateTaskIDError struct {
	TaskID string
}

func (e *DuplicateTaskIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.TaskID)
}

func (e *DuplicateTaskIDError) Unwrap() error { return ErrDuplicateTaskID }

// UnknownDependencyError reports a task referencing a dependency id that is
// not part of the batch.
type UnknownDependencyError struct {
	TaskID    string
	MissingID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.MissingID)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

// CyclicDependencyError names one witness cycle in the batch graph.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "dependency cycle detected"
	}
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// MissingReferenceError reports an @path token whose file does not resolve
// relative to the task's working directory.
type MissingReferenceError struct {
	Path string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("task references missing file %q", e.Path)
}

func (e *MissingReferenceError) Unwrap() error { return ErrMissingReference }

// TimeoutError reports an adapter call that exceeded its deadline.
type TimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("backend timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("task %q timed out after %s", e.TaskID, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// BackendExecutionError reports a nonzero backend exit.
type BackendExecutionError struct {
	TaskID   string
	ExitCode int
	Detail   string
}

func (e *BackendExecutionError) Error() string {
	msg := fmt.Sprintf("task %q failed with exit code %d", e.TaskID, e.ExitCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *BackendExecutionError) Unwrap() error { return ErrBackendExecution }
