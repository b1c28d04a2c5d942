package dataset

import (
	"fmt"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// #region to-dict

// ToDict exports the dataset as a nested document. Lists keep their order and
// tasks carry their kind.
func (ds *Dataset) ToDict() *dict.Dict {
	history := make([]any, len(ds.history))
	for i, r := range ds.history {
		history[i] = r.ToDict()
	}
	analyses := make([]any, len(ds.analyses))
	for i, r := range ds.analyses {
		analyses[i] = r.ToDict()
	}
	annotations := make([]any, len(ds.annotations))
	for i, r := range ds.annotations {
		annotations[i] = r.ToDict()
	}
	representations := make([]any, len(ds.representations))
	for i, r := range ds.representations {
		representations[i] = r.ToDict()
	}
	references := make([]any, len(ds.references))
	for i, r := range ds.references {
		references[i] = r.ToDict()
	}
	tasks := make([]any, len(ds.tasks))
	for i, t := range ds.tasks {
		tasks[i] = t.ToDict()
	}
	return dict.New().
		Set("id", ds.id).
		Set("label", ds.label).
		Set("package_name", ds.packageName).
		Set("type", ds.typeName).
		Set("data", ds.data.ToDict()).
		Set("origdata", ds.origdata.ToDict()).
		Set("history", history).
		Set("history_pointer", ds.historyPointer).
		Set("analyses", analyses).
		Set("annotations", annotations).
		Set("representations", representations).
		Set("references", references).
		Set("tasks", tasks)
}

// #endregion

// #region from-dict

// FromDict sets the fields present in d. Records are decoded as data only;
// operation types are not resolved until a record is replayed.
func (ds *Dataset) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	for key, dst := range map[string]*string{
		"id":           &ds.id,
		"label":        &ds.label,
		"package_name": &ds.packageName,
		"type":         &ds.typeName,
	} {
		if d.Has(key) {
			*dst = d.String(key)
		}
	}
	if doc := d.Dict("data"); doc != nil {
		v := &data.Data{}
		if err := v.FromDict(doc); err != nil {
			return fmt.Errorf("dataset %s data: %w", ds.id, err)
		}
		ds.data = v
	}
	if doc := d.Dict("origdata"); doc != nil {
		v := &data.Data{}
		if err := v.FromDict(doc); err != nil {
			return fmt.Errorf("dataset %s origdata: %w", ds.id, err)
		}
		ds.origdata = v
	}
	if d.Has("history") {
		history, err := historyFromDicts(d.Dicts("history"))
		if err != nil {
			return fmt.Errorf("dataset %s: %w", ds.id, err)
		}
		ds.history = history
		ds.historyPointer = len(history) - 1
	}
	if p, ok := d.Int("history_pointer"); ok {
		if p < -1 || p > len(ds.history)-1 {
			return fmt.Errorf("dataset %s history pointer %d of %d: %w", ds.id, p, len(ds.history), ErrIndexOutOfRange)
		}
		ds.historyPointer = p
	}
	if d.Has("analyses") {
		out, err := decodeAll(d.Dicts("analyses"), func() *AnalysisHistoryRecord { return &AnalysisHistoryRecord{} })
		if err != nil {
			return fmt.Errorf("dataset %s analyses: %w", ds.id, err)
		}
		ds.analyses = out
	}
	if d.Has("annotations") {
		out, err := decodeAll(d.Dicts("annotations"), func() *AnnotationHistoryRecord { return &AnnotationHistoryRecord{} })
		if err != nil {
			return fmt.Errorf("dataset %s annotations: %w", ds.id, err)
		}
		ds.annotations = out
	}
	if d.Has("representations") {
		out, err := decodeAll(d.Dicts("representations"), func() *PlotHistoryRecord { return &PlotHistoryRecord{} })
		if err != nil {
			return fmt.Errorf("dataset %s representations: %w", ds.id, err)
		}
		ds.representations = out
	}
	if d.Has("references") {
		out, err := decodeAll(d.Dicts("references"), func() *DatasetReference { return &DatasetReference{} })
		if err != nil {
			return fmt.Errorf("dataset %s references: %w", ds.id, err)
		}
		ds.references = out
	}
	if d.Has("tasks") {
		docs := d.Dicts("tasks")
		tasks := make([]Task, len(docs))
		for i, doc := range docs {
			t, err := TaskFromDict(doc)
			if err != nil {
				return fmt.Errorf("dataset %s task %d: %w", ds.id, i, err)
			}
			tasks[i] = t
		}
		ds.tasks = tasks
	}
	return nil
}

func historyFromDicts(docs []*dict.Dict) ([]*ProcessingHistoryRecord, error) {
	out, err := decodeAll(docs, func() *ProcessingHistoryRecord { return &ProcessingHistoryRecord{} })
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return out, nil
}

func decodeAll[T dict.FromDicter](docs []*dict.Dict, fresh func() T) ([]T, error) {
	out := make([]T, len(docs))
	for i, doc := range docs {
		v := fresh()
		if err := v.FromDict(doc); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FromDocument creates a dataset of the document's registered type and fills it from d.
func FromDocument(d *dict.Dict) (*Dataset, error) {
	if d == nil {
		return nil, ErrMissingDataset
	}
	typeName := d.String("type")
	if typeName == "" {
		typeName = TypeDataset
	}
	ds, err := Types.New(typeName)
	if err != nil {
		return nil, err
	}
	if err := ds.FromDict(d); err != nil {
		return nil, err
	}
	return ds, nil
}

// #endregion
