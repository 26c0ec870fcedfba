package main

import (
	stderrors "errors"

	"github.com/ardentforge/branchctl/pkg/errors"
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

// exitCodeForError maps an error to a process exit code: structured errors
// carry their Kind through to a fixed code, unstructured errors fall back to
// the generic 1.
func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}

	var coded exitCoder
	if stderrors.As(err, &coded) {
		return coded.ExitCode()
	}

	var structured *errors.Error
	if stderrors.As(err, &structured) {
		switch structured.Kind {
		case errors.KindValidation:
			return 2
		case errors.KindNotFound:
			return 3
		case errors.KindStateConflict:
			return 4
		case errors.KindLimitExceeded:
			return 5
		case errors.KindMergeFailed:
			return 6
		case errors.KindExecutionFailed:
			return 7
		}
	}

	return 1
}
