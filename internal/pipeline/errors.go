package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateKey is returned by an index stage that emitted the same key twice.
var ErrDuplicateKey = errors.New("duplicate key in derived table")

// Stage names used in errors.
const (
	StageIndex = "index"
	StageWrite = "write"
)

// StageError records the failure of one namespace's index or write stage.
type StageError struct {
	Namespace string
	Stage     string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Namespace, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// BuildError lists every namespace that failed during a build. Namespaces
// not listed were produced (and, when written, stored) normally.
type BuildError struct {
	Failures []*StageError
}

func (e *BuildError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, failure.Error())
	}
	return "build failed for " + strings.Join(parts, "; ")
}

func (e *BuildError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure)
	}
	return errs
}

// Namespaces returns the failing namespaces in order.
func (e *BuildError) Namespaces() []string {
	names := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		names = append(names, failure.Namespace)
	}
	return names
}

// EntryError records an entry dropped by a failing transform.
type EntryError struct {
	Plugin string
	Key    string
	Err    error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: transform %q: %v", e.Plugin, e.Key, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
