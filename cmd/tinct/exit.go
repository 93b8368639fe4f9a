package main

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitPartial     = 2
	exitInterrupted = 130
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string {
	return e.message
}

func newExitError(code int, message string) *exitError {
	return &exitError{code: code, message: message}
}
