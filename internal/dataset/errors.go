package dataset

import (
	"errors"
	"fmt"
)

// #region precondition-errors
var (
	ErrMissingDataset        = errors.New("missing dataset")
	ErrMissingProcessingStep = errors.New("missing processing step")
	ErrMissingAnalysisStep   = errors.New("missing analysis step")
	ErrMissingAnnotation     = errors.New("missing annotation")
	ErrMissingPlotter        = errors.New("missing plotter")
	ErrMissingContent        = errors.New("annotation has no content")
	ErrMissingImporter       = errors.New("missing importer")
	ErrMissingData           = errors.New("missing data")
	ErrIndexOutOfRange       = errors.New("index out of range")
)

// #endregion precondition-errors

// #region sequencing-errors
var (
	ErrLeadingHistory   = errors.New("processing with leading history")
	ErrEmptyHistory     = errors.New("empty history")
	ErrHistoryBeginning = errors.New("at beginning of history")
	ErrUndoStep         = errors.New("step is not undoable")
	ErrLatestChange     = errors.New("already at latest change")
)

// #endregion sequencing-errors

// #region applicability
// ErrNotApplicable is matched by every *NotApplicableError.
var ErrNotApplicable = errors.New("not applicable")

// NotApplicableError reports an operation that declined to run on a dataset.
type NotApplicableError struct {
	Operation string
	DatasetID string
}

func (e *NotApplicableError) Error() string {
	if e.DatasetID == "" {
		return fmt.Sprintf("%s not applicable to dataset", e.Operation)
	}
	return fmt.Sprintf("%s not applicable to dataset %s", e.Operation, e.DatasetID)
}

// Is lets errors.Is match ErrNotApplicable.
func (e *NotApplicableError) Is(target error) bool { return target == ErrNotApplicable }

// #endregion applicability
