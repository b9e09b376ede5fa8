package tasks

import "errors"

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTitleRequired  = errors.New("title is required")
	ErrURLRequired    = errors.New("url is required")
	ErrPrereqRequired = errors.New("requires_task_id is required")
	ErrSelfDependency = errors.New("task cannot require itself")
	ErrInvalidStatus  = errors.New("invalid task status")
	ErrInvalidDue     = errors.New("invalid due date")
)

// IsValidation reports whether err is a malformed-input error that should
// surface as a 400 rather than a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrTitleRequired) ||
		errors.Is(err, ErrURLRequired) ||
		errors.Is(err, ErrPrereqRequired) ||
		errors.Is(err, ErrSelfDependency) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidDue)
}
