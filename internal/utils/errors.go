package utils

import "fmt"

// AppError is the error shape surfaced by the service layer. Op names the
// failing operation ("AnalyzeEntity", "AnalyzeOverview"), Msg is safe to
// return to API callers, and Err keeps the cause for errors.Is chains down
// to provider failures and context cancellation.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError wraps err with the operation and caller-facing message.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
