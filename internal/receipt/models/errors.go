package models

import (
	"errors"
	"fmt"
)

// ErrTransactionInProgress is returned when another request currently holds the
// transaction ID.
var ErrTransactionInProgress = errors.New("transaction already in progress")

// DuplicateTransactionError rejects a request whose transaction ID is already recorded.
type DuplicateTransactionError struct {
	TransactionID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("Transaction ID %s already exists", e.TransactionID)
}

// StageError reports the pipeline stage that failed. Nothing is persisted when it is returned.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the failing stage. A nil err yields nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// IsDuplicate reports whether err is a DuplicateTransactionError.
func IsDuplicate(err error) bool {
	var dup *DuplicateTransactionError
	return errors.As(err, &dup)
}

// FailedStage returns the stage carried by err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

func isStage(err error, stage Stage) bool {
	s, ok := FailedStage(err)
	return ok && s == stage
}

// IsLedgerError reports a failed ledger read (dedup, identify) or write (persist).
func IsLedgerError(err error) bool {
	return isStage(err, StageDedup) || isStage(err, StageIdentify) || isStage(err, StagePersist)
}

func IsRenderError(err error) bool  { return isStage(err, StageRender) }
func IsConvertError(err error) bool { return isStage(err, StageConvert) }
func IsNotifyError(err error) bool  { return isStage(err, StageNotify) }
