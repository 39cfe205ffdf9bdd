package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/airbusgeo/s2angles/internal/angles"
)

// Stage of a run. A run goes through the stages in this order:
// Extracted (archive inputs only), Located, Parsed, Reduced, Resampled, Finalized
type Stage string

const (
	Extracted Stage = "Extracted"
	Located   Stage = "Located"
	Parsed    Stage = "Parsed"
	Reduced   Stage = "Reduced"
	Resampled Stage = "Resampled"
	Finalized Stage = "Finalized"
)

// StageError is returned by Generate when the transition to Stage failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage in which err happened, if any
func FailedStage(err error) (Stage, bool) {
	var serr *StageError
	if errors.As(err, &serr) {
		return serr.Stage, true
	}
	return "", false
}

// Diagnostic formats err on one line: "stage=<stage> path=<path>: <message>".
// Stage and path are omitted when unknown.
func Diagnostic(err error) string {
	var prefix []string
	if stage, ok := FailedStage(err); ok {
		prefix = append(prefix, "stage="+string(stage))
	}
	msg := err.Error()
	var serr *StageError
	if errors.As(err, &serr) {
		msg = serr.Err.Error()
	}
	var aerr angles.Error
	if errors.As(err, &aerr) {
		if aerr.Path() != "" {
			prefix = append(prefix, "path="+aerr.Path())
		}
		msg = aerr.Code().String() + ": " + aerr.Desc()
	}
	if len(prefix) == 0 {
		return msg
	}
	return strings.Join(prefix, " ") + ": " + msg
}
