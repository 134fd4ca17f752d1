// Package apperr defines the error kinds shared by the settings packages.
//
// Package level sentinels wrap one of the kinds below, so callers can match
// either the precise error (errors.Is(err, setting.ErrSettingNotFound)) or the
// kind (errors.Is(err, apperr.ErrNotFound)).
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the kind of errors for missing keys or history entries.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the kind of errors for malformed keys, values or batch entries.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the kind of writes that contradict stored state, such as
	// changing a written history entry.
	ErrConflict = errors.New("conflict")

	// ErrStorage is the kind of errors raised by the persistence layer.
	ErrStorage = errors.New("storage failure")
)

// NotFound returns a new error of kind ErrNotFound.
func NotFound(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Validation returns a new error of kind ErrValidation.
func Validation(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// Storage wraps err as ErrStorage. Nil stays nil and errors that already carry
// a kind are returned unchanged.
func Storage(err error) error {
	if err == nil || Kind(err) != nil {
		return err
	}

	return &kindError{kind: ErrStorage, msg: err.Error(), cause: err}
}

// Kind returns the kind sentinel carried by err or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}

	return nil
}

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}

	return []error{e.kind, e.cause}
}
