package moderation

import "errors"

// UserError is an input or configuration problem. Message is shown to the
// invoking channel as is.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

func NewUserError(err error, message string) error {
	return &UserError{Message: message, Err: err}
}

var ErrUsage = errors.New("invalid usage")

func Usage(message string) error {
	return &UserError{Message: message, Err: ErrUsage}
}

// Message returns the text to show for err and whether err is a UserError.
func Message(err error) (string, bool) {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message, true
	}
	return "", false
}
