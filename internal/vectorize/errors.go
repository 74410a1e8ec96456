package vectorize

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoEdgesFound = errors.New("no significant edges found in the image, try adjusting the sensitivity")
	ErrInternal     = errors.New("internal processing failure")
)

// Stage names one step of Convert.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageMonochrome Stage = "monochrome"
	StagePreprocess Stage = "preprocess"
	StageDetect     Stage = "detect"
	StageTrace      Stage = "trace"
	StageSample     Stage = "sample"
	StageSerialize  Stage = "serialize"
)

// StageError records which pipeline stage produced Err.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// runStage executes fn and converts both returned errors and panics into a
// *StageError. Panics (out-of-range indexing and the like) surface as
// ErrInternal.
func runStage(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: fmt.Errorf("%w: %v", ErrInternal, r)}
		}
	}()

	if err := fn(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
