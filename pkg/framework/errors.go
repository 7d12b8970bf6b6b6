package framework

import (
	"errors"
	"strings"
)

// AggregatedError aggregates multiple errors.
type AggregatedError struct {
	Errors []error
}

// Error implements error
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = "Multiple errors:"
	for n, err := range e.Errors {
		msg[n+1] = err.Error()
	}
	return strings.Join(msg, "\n")
}

// Is reports if any aggregated error matches target.
func (e *AggregatedError) Is(target error) bool {
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As finds the first aggregated error matching target.
func (e *AggregatedError) As(target interface{}) bool {
	for _, err := range e.Errors {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}

// Add adds errors to be aggregated. nil will be skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns aggregated error if any error happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// RunnerError is the error returned by a named Runnable.
type RunnerError struct {
	Name string
	Err  error
}

// Error implements error.
func (e *RunnerError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *RunnerError) Unwrap() error {
	return e.Err
}

// ErrForcedExit is returned by Runner.Wait when stop is requested twice.
var ErrForcedExit = errors.New("forced exit")
