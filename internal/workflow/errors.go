package workflow

import "fmt"

// WorkflowError wraps phase failures with run context.
type WorkflowError struct {
	RunID string
	Phase string
	Err   error
}

func (e *WorkflowError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("run %s: %s: %s", e.RunID, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
