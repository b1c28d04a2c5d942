package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no dataset or source exists for an id.
var ErrNotFound = errors.New("not found")

// #region dataset-summary
// DatasetSummary is one row of the datasets listing.
type DatasetSummary struct {
	ID             string
	Type           string
	Label          string
	HistoryLen     int
	HistoryPointer int
	UpdatedAt      time.Time
}
// #endregion dataset-summary

// #region history-entry
// HistoryEntry is one persisted processing record, without its full document.
type HistoryEntry struct {
	Position  int
	ClassName string
	Undoable  bool
	CreatedAt time.Time
	// Current marks the entry the history pointer sits on.
	Current bool
	// Undone marks entries beyond the pointer.
	Undone bool
}
// #endregion history-entry
