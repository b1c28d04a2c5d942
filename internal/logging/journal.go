package logging

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

// Tracked is the part of a dataset the journal reads when an event fires.
type Tracked interface {
	ID() string
	HistoryPointer() int
}

// #region journal
// Journal is a dataset.Observer that writes every state change of one dataset
// to provenance_log. Observer callbacks cannot fail, so the first write error
// is kept and reported by Err.
type Journal struct {
	db *sql.DB
	ds Tracked

	mu       sync.Mutex
	replayed int
	err      error
}

// NewJournal creates a journal for ds. Install it with ds.SetObserver.
func NewJournal(db *sql.DB, ds Tracked) *Journal {
	return &Journal{db: db, ds: ds}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Journal) TaskCommitted(kind dataset.TaskKind, className string) {
	j.write(ProvenanceEntry{Action: ActionCommit, TaskKind: string(kind), ClassName: className})
}

// Undone writes the undo with the number of steps replayed to rebuild the data.
func (j *Journal) Undone() {
	j.mu.Lock()
	n := j.replayed
	j.replayed = 0
	j.mu.Unlock()

	detail, _ := json.Marshal(ReplayDetail{Replayed: n})
	j.write(ProvenanceEntry{Action: ActionUndo, TaskKind: string(dataset.TaskProcessing), DetailJSON: string(detail)})
}

func (j *Journal) Redone() {
	j.write(ProvenanceEntry{Action: ActionRedo, TaskKind: string(dataset.TaskProcessing)})
}

func (j *Journal) Replayed(steps int) {
	j.mu.Lock()
	j.replayed += steps
	j.mu.Unlock()
}

func (j *Journal) ReconstructionFailed(kind dataset.TaskKind, className string) {
	j.write(ProvenanceEntry{
		Action:    ActionReconstructionFailed,
		TaskKind:  string(kind),
		ClassName: className,
		Reason:    "type not registered",
	})
}

// Strip records a history strip. Datasets do not report strips to observers,
// so callers that strip call this directly.
func (j *Journal) Strip(dropped int) {
	detail, _ := json.Marshal(map[string]int{"dropped": dropped})
	j.write(ProvenanceEntry{Action: ActionStrip, DetailJSON: string(detail)})
}

func (j *Journal) write(e ProvenanceEntry) {
	e.DatasetID = j.ds.ID()
	e.Pointer = j.ds.HistoryPointer()
	err := LogTask(j.db, e)

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil && j.err == nil {
		j.err = err
	}
}
// #endregion journal

var _ dataset.Observer = (*Journal)(nil)
