package logging

import "time"

// #region actions
// Actions recorded in provenance_log.
const (
	ActionCommit               = "commit"
	ActionUndo                 = "undo"
	ActionRedo                 = "redo"
	ActionStrip                = "strip"
	ActionReconstructionFailed = "reconstruction_failed"
)
// #endregion actions

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	ID         int64
	DatasetID  string
	Action     string // "commit" | "undo" | "redo" | "strip" | "reconstruction_failed"
	TaskKind   string
	ClassName  string
	Pointer    int
	DetailJSON string
	Reason     string
	CreatedAt  time.Time
}
// #endregion provenance-entry

// #region replay-detail
// ReplayDetail is serialized into detail_json for undo entries so the cost of
// each reconstruction can be read back.
type ReplayDetail struct {
	Replayed int `json:"replayed"`
}
// #endregion replay-detail
