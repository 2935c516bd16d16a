package odm

import (
	"errors"
	"fmt"
)

// ErrAwaitTimeout is returned by AwaitCompletion when the task did not reach a
// terminal status within the allowed time.
var ErrAwaitTimeout = errors.New("timed out waiting for task completion")

type ErrSubmission struct {
	error
}

func NewErrSubmission(cause error) *ErrSubmission {
	return &ErrSubmission{fmt.Errorf("failed to create task: %w", cause)}
}

func (e *ErrSubmission) Unwrap() error { return e.error }

type ErrRetrieval struct {
	error
}

func NewErrRetrieval(taskID string, cause error) *ErrRetrieval {
	return &ErrRetrieval{fmt.Errorf("failed to retrieve assets of task %s: %w", taskID, cause)}
}

func (e *ErrRetrieval) Unwrap() error { return e.error }

// ErrNode is an error reported by the node in its response body.
type ErrNode struct {
	StatusCode int
	Message    string
}

func (e *ErrNode) Error() string {
	return fmt.Sprintf("node responded with status %d: %s", e.StatusCode, e.Message)
}
