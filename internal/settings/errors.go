package settings

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/quillblog/quill/internal/apperr"
)

// ErrBatchEmpty is returned for batches without entries.
var ErrBatchEmpty = fmt.Errorf("batch has no entries: %w", apperr.ErrValidation)

// Failure names one rejected batch entry.
type Failure struct {
	Index   int    `json:"index"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// BatchError is returned when a batch was not applied. Nothing of the batch
// is stored when it is returned.
type BatchError struct {
	Failures []Failure
	kind     error
	errs     *multierror.Error
}

func newBatchError() *BatchError {
	return &BatchError{}
}

// add records the failure of entry i.
func (e *BatchError) add(i int, key string, err error) {
	e.Failures = append(e.Failures, Failure{Index: i, Key: key, Message: err.Error()})
	e.errs = multierror.Append(e.errs, fmt.Errorf("entries[%d] %s: %w", i, key, err))

	if e.kind == nil {
		e.kind = apperr.Kind(err)
	}
}

// orNil returns nil when no failure was added.
func (e *BatchError) orNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}

	if e.kind == nil {
		e.kind = apperr.ErrStorage
	}

	e.errs.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}

		return fmt.Sprintf("batch rejected, nothing applied: %s", strings.Join(msgs, "; "))
	}

	return e
}

// Keys returns the offending keys.
func (e *BatchError) Keys() []string {
	keys := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		keys[i] = f.Key
	}

	return keys
}

func (e *BatchError) Error() string {
	return e.errs.Error()
}

// Unwrap exposes the error kind and the entry errors.
func (e *BatchError) Unwrap() []error {
	return []error{e.kind, e.errs}
}
