package modelarchive

import (
	"errors"
	"fmt"

	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

var (
	// ErrInvalidReference is returned for references that resolve outside of the permitted
	// directories, cannot be named safely or point to nothing.
	ErrInvalidReference = errors.New("invalid model archive reference")
	// ErrDownloadFailed is returned when the archive could not be retrieved from its source.
	ErrDownloadFailed = errors.New("model archive download failed")
	// ErrExtractionFailed is returned for corrupt or unsafe archives.
	ErrExtractionFailed = errors.New("model archive extraction failed")
	// ErrInvalidModel is returned when the manifest is missing or incomplete.
	ErrInvalidModel = manifestv1.ErrInvalidModel
	// ErrNotFound is returned by Remove and Cleanup for archives that are not registered.
	ErrNotFound = errors.New("model archive not found")
)

// Stage names the step of an operation that failed.
type Stage string

const (
	StageClassify Stage = "classify"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StagePromote  Stage = "promote"
	StageRegister Stage = "register"
	StageRemove   Stage = "remove"
	StageCleanup  Stage = "cleanup"
)

// StageError is the error returned by Store operations.
// It identifies the failed stage and the reference the operation was called with.
// The wrapped error matches one of the package sentinel errors with errors.Is, except for
// registry persistence failures and, in Remove and Cleanup, context and file system errors,
// which are wrapped as they are.
type StageError struct {
	Stage     Stage
	Reference string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Reference, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// newStageError wraps err into a StageError and makes sure it matches sentinel.
// A nil sentinel keeps err as is.
func newStageError(stage Stage, reference string, sentinel, err error) *StageError {
	switch {
	case err == nil:
		err = sentinel
	case sentinel != nil && !errors.Is(err, sentinel):
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return &StageError{Stage: stage, Reference: reference, Err: err}
}
