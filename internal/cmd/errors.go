package cmd

import (
	"errors"
	"fmt"
)

// exitCodeError carries a process exit code alongside the error chain.
type exitCodeError struct {
	code int
	msg  string
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitError wraps err with a message and the foundry exit code the process
// should terminate with.
func exitError[Code ~int](code Code, msg string, err error) error {
	return &exitCodeError{code: int(code), msg: msg, err: err}
}

// ExitCodeFor extracts the exit code for err; unclassified errors exit 1.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}
