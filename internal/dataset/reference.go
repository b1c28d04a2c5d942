package dataset

import (
	"fmt"
	"sync"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// #region importer
// Importer supplies the initial data of a dataset by id.
type Importer interface {
	Import(id string) (*data.Data, error)
}

// ImporterFunc adapts a function to Importer.
type ImporterFunc func(id string) (*data.Data, error)

// Import calls f.
func (f ImporterFunc) Import(id string) (*data.Data, error) { return f(id) }

// MemoryImporter serves initial data from memory. Safe for concurrent use.
type MemoryImporter struct {
	mu      sync.RWMutex
	sources map[string]*data.Data
}

// NewMemoryImporter creates an empty importer.
func NewMemoryImporter() *MemoryImporter {
	return &MemoryImporter{sources: make(map[string]*data.Data)}
}

// Add stores a copy of d as the initial data of id.
func (m *MemoryImporter) Add(id string, d *data.Data) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[id] = d.Clone()
}

// Import returns a copy of the data stored for id.
func (m *MemoryImporter) Import(id string) (*data.Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.sources[id]
	if !ok {
		return nil, fmt.Errorf("import %s: %w", id, ErrMissingData)
	}
	return d.Clone(), nil
}

// #endregion importer

// #region reference
// DatasetReference points at another dataset and carries enough history to
// rebuild its data independently.
type DatasetReference struct {
	Type    string
	ID      string
	History []*ProcessingHistoryRecord
}

// NewDatasetReference captures the type, id and applied history of ds.
func NewDatasetReference(ds *Dataset) (*DatasetReference, error) {
	ref := &DatasetReference{}
	if err := ref.FromDataset(ds); err != nil {
		return nil, err
	}
	return ref, nil
}

// FromDataset captures ds. Steps beyond the history pointer are not part of
// the current data and are left out.
func (r *DatasetReference) FromDataset(ds *Dataset) error {
	if ds == nil {
		return ErrMissingDataset
	}
	r.Type = ds.typeName
	r.ID = ds.id
	r.History = cloneHistory(ds.history[:ds.historyPointer+1])
	return nil
}

// ToDataset rebuilds the referenced dataset starting from empty data.
func (r *DatasetReference) ToDataset() (*Dataset, error) {
	return r.materialize(nil)
}

// ToDatasetFrom rebuilds the referenced dataset starting from the data
// importer returns for the reference's id.
func (r *DatasetReference) ToDatasetFrom(importer Importer) (*Dataset, error) {
	if importer == nil {
		return nil, ErrMissingImporter
	}
	return r.materialize(importer)
}

// materialize instantiates Type, replays the captured history without
// recording it and makes the result the new baseline.
func (r *DatasetReference) materialize(importer Importer) (*Dataset, error) {
	if r.Type == "" {
		return nil, ErrMissingDataset
	}
	ds, err := Types.New(r.Type)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", r.ID, err)
	}
	ds.id = r.ID
	if importer != nil {
		d, err := importer.Import(r.ID)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", r.ID, err)
		}
		if err := ds.Import(d); err != nil {
			return nil, fmt.Errorf("reference %s: %w", r.ID, err)
		}
	}
	for i, record := range r.History {
		if err := record.Replay(ds); err != nil {
			return nil, fmt.Errorf("reference %s step %d: %w", r.ID, i, err)
		}
	}
	ds.origdata = ds.data.Clone()
	ds.observer.Replayed(len(r.History))
	return ds, nil
}

// Clone returns a deep copy.
func (r *DatasetReference) Clone() *DatasetReference {
	if r == nil {
		return nil
	}
	return &DatasetReference{Type: r.Type, ID: r.ID, History: cloneHistory(r.History)}
}

// ToDict exports the reference.
func (r *DatasetReference) ToDict() *dict.Dict {
	history := make([]any, len(r.History))
	for i, h := range r.History {
		history[i] = h.ToDict()
	}
	return dict.New().
		Set("type", r.Type).
		Set("id", r.ID).
		Set("history", history)
}

// FromDict sets the known fields present in d.
func (r *DatasetReference) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	if d.Has("type") {
		r.Type = d.String("type")
	}
	if d.Has("id") {
		r.ID = d.String("id")
	}
	if d.Has("history") {
		history, err := historyFromDicts(d.Dicts("history"))
		if err != nil {
			return fmt.Errorf("reference %s: %w", r.ID, err)
		}
		r.History = history
	}
	return nil
}

// #endregion reference
