package tracker

import "fmt"

// NotFoundError is returned when an operation names a stage that is not part
// of the declared pipeline.
type NotFoundError struct {
	Stage string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stage %q is not part of the declared pipeline", e.Stage)
}

// InvalidTransitionError is returned when an operation would move a stage or
// the run out of its allowed forward-only status order.
type InvalidTransitionError struct {
	Stage string
	From  StageStatus
	Op    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s stage %q while it is %q", e.Op, e.Stage, e.From)
}
