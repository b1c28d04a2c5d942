// Package dataset implements the versioned dataset: current and original data,
// a linear processing history with a movable pointer, and the parallel logs of
// analyses, annotations and representations.
//
// Every operation handed to a Dataset is cloned before it runs, and every record
// the dataset stores is a value that owns no reference to the operation it was
// built from. A Dataset is not safe for concurrent use.
package dataset

// #region imports
import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/registry"
	"github.com/danielpatrickdp/reprolab/internal/sysinfo"
)

// #endregion

// #region types-registry

// Types resolves dataset type names for references and persisted documents.
var Types = registry.New[*Dataset]("dataset")

var (
	// TypeDataset is the type name of a plain Dataset.
	TypeDataset = registry.TypeName(&Dataset{})
	// TypeExperimentalDataset tags datasets imported from measurements.
	TypeExperimentalDataset = strings.TrimSuffix(TypeDataset, "Dataset") + "ExperimentalDataset"
	// TypeCalculatedDataset tags datasets produced by a calculation or analysis.
	TypeCalculatedDataset = strings.TrimSuffix(TypeDataset, "Dataset") + "CalculatedDataset"
)

func init() {
	for _, name := range []string{TypeDataset, TypeExperimentalDataset, TypeCalculatedDataset} {
		typeName := name
		if err := Types.RegisterName(typeName, func() *Dataset { return New(WithType(typeName)) }); err != nil {
			panic(err)
		}
	}
}

// #endregion

// #region dataset-struct

// Dataset is the unit of data, metadata and history that operations act upon.
type Dataset struct {
	id          string
	label       string
	packageName string
	typeName    string

	data     *data.Data
	origdata *data.Data

	history        []*ProcessingHistoryRecord
	historyPointer int

	analyses        []*AnalysisHistoryRecord
	annotations     []*AnnotationHistoryRecord
	representations []*PlotHistoryRecord
	references      []*DatasetReference
	tasks           []Task

	logger   *slog.Logger
	observer Observer
}

// Option configures a Dataset at construction.
type Option func(*Dataset)

// WithID overrides the generated id.
func WithID(id string) Option { return func(ds *Dataset) { ds.id = id } }

// WithLabel sets a human-readable label.
func WithLabel(label string) Option { return func(ds *Dataset) { ds.label = label } }

// WithPackageName names the package on whose behalf records are created.
// It ends up in every record's SystemInfo.
func WithPackageName(name string) Option { return func(ds *Dataset) { ds.packageName = name } }

// WithType tags the dataset with one of the names registered in Types.
func WithType(name string) Option { return func(ds *Dataset) { ds.typeName = name } }

// WithLogger routes state-machine events to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ds *Dataset) {
		if logger != nil {
			ds.logger = logger
		}
	}
}

// WithObserver receives committed tasks, undo, redo and replay counts.
func WithObserver(o Observer) Option {
	return func(ds *Dataset) {
		if o != nil {
			ds.observer = o
		}
	}
}

// WithData sets both data and origdata to copies of d.
func WithData(d *data.Data) Option {
	return func(ds *Dataset) {
		if d != nil {
			ds.data = d.Clone()
			ds.origdata = d.Clone()
		}
	}
}

// New creates an empty dataset with a random id.
func New(opts ...Option) *Dataset {
	ds := &Dataset{
		id:             uuid.NewString(),
		packageName:    sysinfo.FrameworkModule,
		typeName:       TypeDataset,
		data:           data.MustNew(nil),
		origdata:       data.MustNew(nil),
		historyPointer: -1,
		logger:         slog.New(slog.DiscardHandler),
		observer:       nopObserver{},
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// #endregion

// #region accessors

func (ds *Dataset) ID() string          { return ds.id }
func (ds *Dataset) Label() string       { return ds.label }
func (ds *Dataset) PackageName() string { return ds.packageName }

// TypeName returns the registered type name of the dataset.
func (ds *Dataset) TypeName() string { return ds.typeName }

// Data returns the current data. Processing steps mutate it in place.
func (ds *Dataset) Data() *data.Data { return ds.data }

// OrigData returns a copy of the baseline data undo replays from.
func (ds *Dataset) OrigData() *data.Data { return ds.origdata.Clone() }

// HistoryPointer returns the index of the current step, -1 before any processing.
func (ds *Dataset) HistoryPointer() int { return ds.historyPointer }

// HistoryLen returns the number of recorded processing steps, including undone ones.
func (ds *Dataset) HistoryLen() int { return len(ds.history) }

// HasLeadingHistory reports whether undone steps exist beyond the pointer.
func (ds *Dataset) HasLeadingHistory() bool { return ds.historyPointer < len(ds.history)-1 }

// History returns copies of the processing history records.
func (ds *Dataset) History() []*ProcessingHistoryRecord { return cloneHistory(ds.history) }

// Analyses returns copies of the analysis records.
func (ds *Dataset) Analyses() []*AnalysisHistoryRecord {
	out := make([]*AnalysisHistoryRecord, len(ds.analyses))
	for i, r := range ds.analyses {
		out[i] = r.Clone()
	}
	return out
}

// Annotations returns copies of the annotation records.
func (ds *Dataset) Annotations() []*AnnotationHistoryRecord {
	out := make([]*AnnotationHistoryRecord, len(ds.annotations))
	for i, r := range ds.annotations {
		out[i] = r.Clone()
	}
	return out
}

// Representations returns copies of the plot records.
func (ds *Dataset) Representations() []*PlotHistoryRecord {
	out := make([]*PlotHistoryRecord, len(ds.representations))
	for i, r := range ds.representations {
		out[i] = r.Clone()
	}
	return out
}

// References returns copies of the dataset references.
func (ds *Dataset) References() []*DatasetReference {
	out := make([]*DatasetReference, len(ds.references))
	for i, r := range ds.references {
		out[i] = r.Clone()
	}
	return out
}

// Tasks returns copies of the task log entries in chronological order.
func (ds *Dataset) Tasks() []Task {
	out := make([]Task, len(ds.tasks))
	for i, t := range ds.tasks {
		out[i] = t.Clone()
	}
	return out
}

// SetLogger replaces the logger, e.g. after loading a dataset from a store.
func (ds *Dataset) SetLogger(logger *slog.Logger) { WithLogger(logger)(ds) }

// SetObserver replaces the observer.
func (ds *Dataset) SetObserver(o Observer) { WithObserver(o)(ds) }

// #endregion

// #region import

// Import replaces data and origdata with copies of d. Datasets that already
// have processing history refuse the import.
func (ds *Dataset) Import(d *data.Data) error {
	if d == nil {
		return ErrMissingData
	}
	if len(ds.history) > 0 {
		return fmt.Errorf("import into dataset %s with %d history records", ds.id, len(ds.history))
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	ds.data = d.Clone()
	ds.origdata = d.Clone()
	return nil
}

// #endregion

// #region process

// Process runs a clone of step against the dataset and records it. The executed
// clone is returned so callers can inspect its outputs.
//
// A step that is not undoable advances the baseline: origdata becomes a copy of
// the processed data and existing representations are dropped.
func (ds *Dataset) Process(step ProcessingStep) (ProcessingStep, error) {
	if ds.HasLeadingHistory() {
		return nil, ErrLeadingHistory
	}
	if step == nil {
		return nil, ErrMissingProcessingStep
	}
	step = step.Clone()
	if err := checkApplicable(step, ds); err != nil {
		return nil, err
	}
	scratch := ds.scratch(ds.data.Clone())
	if err := step.Process(scratch); err != nil {
		return nil, fmt.Errorf("process %s: %w", registry.TypeName(step), err)
	}
	ds.data = scratch.data

	record := NewProcessingHistoryRecord(step, ds.packageName)
	ds.history = append(ds.history, record)
	ds.historyPointer++
	ds.tasks = append(ds.tasks, newTask(record))

	if !record.Undoable() {
		ds.origdata = ds.data.Clone()
		ds.representations = nil
	}

	ds.logger.Info("processed",
		"dataset", ds.id,
		"step", record.className(),
		"undoable", record.Undoable(),
		"pointer", ds.historyPointer,
	)
	ds.observer.TaskCommitted(TaskProcessing, record.className())
	return step, nil
}

// #endregion

// #region undo-redo

// Undo moves the pointer back one step and rebuilds data from origdata.
// Only undoable steps can be walked back.
func (ds *Dataset) Undo() error {
	if len(ds.history) == 0 {
		return ErrEmptyHistory
	}
	if ds.historyPointer == -1 {
		return ErrHistoryBeginning
	}
	current := ds.history[ds.historyPointer]
	if !current.Undoable() {
		return fmt.Errorf("undo %s: %w", current.className(), ErrUndoStep)
	}

	target := ds.historyPointer - 1
	rebuilt, err := ds.rebuild(target)
	if err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	ds.data = rebuilt
	ds.historyPointer = target

	ds.logger.Info("undone", "dataset", ds.id, "step", current.className(), "pointer", ds.historyPointer)
	ds.observer.Undone()
	return nil
}

// rebuild replays history onto a copy of origdata up to and including index
// upTo. origdata already reflects every step up to the last irreversible one,
// so only the steps after it are replayed.
func (ds *Dataset) rebuild(upTo int) (*data.Data, error) {
	start := ds.lastIrreversible(upTo) + 1
	scratch := ds.scratch(ds.origdata.Clone())
	for i := start; i <= upTo; i++ {
		if err := ds.history[i].Replay(scratch); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	ds.observer.Replayed(upTo - start + 1)
	return scratch.data, nil
}

func (ds *Dataset) lastIrreversible(upTo int) int {
	for i := upTo; i >= 0; i-- {
		if !ds.history[i].Undoable() {
			return i
		}
	}
	return -1
}

// scratch returns a detached dataset sharing identity with ds, used as the
// target of replays so a failing step leaves ds untouched.
func (ds *Dataset) scratch(d *data.Data) *Dataset {
	return &Dataset{
		id:             ds.id,
		label:          ds.label,
		packageName:    ds.packageName,
		typeName:       ds.typeName,
		data:           d,
		origdata:       ds.origdata,
		historyPointer: -1,
		logger:         ds.logger,
		observer:       ds.observer,
	}
}

// Redo re-applies the step after the pointer without recording it again.
func (ds *Dataset) Redo() error {
	if ds.historyPointer >= len(ds.history)-1 {
		return ErrLatestChange
	}
	next := ds.history[ds.historyPointer+1]
	scratch := ds.scratch(ds.data.Clone())
	if err := next.Replay(scratch); err != nil {
		return fmt.Errorf("redo: %w", err)
	}
	ds.data = scratch.data
	ds.historyPointer++

	if !next.Undoable() {
		ds.origdata = ds.data.Clone()
		ds.representations = nil
	}

	ds.logger.Info("redone", "dataset", ds.id, "step", next.className(), "pointer", ds.historyPointer)
	ds.observer.Redone()
	return nil
}

// StripHistory discards the steps beyond the pointer. Without leading history
// it does nothing.
func (ds *Dataset) StripHistory() {
	if !ds.HasLeadingHistory() {
		return
	}
	dropped := len(ds.history) - ds.historyPointer - 1
	clear(ds.history[ds.historyPointer+1:])
	ds.history = ds.history[:ds.historyPointer+1]
	ds.logger.Info("history stripped", "dataset", ds.id, "dropped", dropped)
}

// #endregion

// #region analyse-annotate-plot

// preprocessing returns copies of the step records applied to the current data.
func (ds *Dataset) preprocessing() []*ProcessingStepRecord {
	out := make([]*ProcessingStepRecord, 0, ds.historyPointer+1)
	for _, r := range ds.history[:ds.historyPointer+1] {
		out = append(out, r.Processing.Clone())
	}
	return out
}

// Analyse runs a clone of step, recording it with the processing chain the
// current data went through.
func (ds *Dataset) Analyse(step AnalysisStep) (AnalysisStep, error) {
	if step == nil {
		return nil, ErrMissingAnalysisStep
	}
	step = step.Clone()
	if err := checkApplicable(step, ds); err != nil {
		return nil, err
	}
	step.AnalysisAttributes().Preprocessing = ds.preprocessing()
	if err := step.Analyse(ds); err != nil {
		return nil, fmt.Errorf("analyse %s: %w", registry.TypeName(step), err)
	}

	record := NewAnalysisHistoryRecord(step, ds.packageName)
	ds.analyses = append(ds.analyses, record)
	ds.tasks = append(ds.tasks, newTask(record))

	ds.logger.Info("analysed", "dataset", ds.id, "step", record.Analysis.ClassName)
	ds.observer.TaskCommitted(TaskAnalysis, record.Analysis.ClassName)
	return step, nil
}

// Annotate attaches a clone of annotation. Content must not be empty; an
// empty scope becomes DefaultScope.
func (ds *Dataset) Annotate(annotation Annotation) (Annotation, error) {
	if annotation == nil {
		return nil, ErrMissingAnnotation
	}
	annotation = annotation.Clone()
	attrs := annotation.AnnotationAttributes()
	if len(attrs.Content) == 0 {
		return nil, ErrMissingContent
	}
	if attrs.Scope == "" {
		attrs.Scope = DefaultScope
	}
	if err := annotation.Annotate(ds); err != nil {
		return nil, fmt.Errorf("annotate %s: %w", registry.TypeName(annotation), err)
	}

	record := NewAnnotationHistoryRecord(annotation, ds.packageName)
	ds.annotations = append(ds.annotations, record)
	ds.tasks = append(ds.tasks, newTask(record))

	ds.logger.Info("annotated", "dataset", ds.id, "annotation", record.Annotation.ClassName, "scope", attrs.Scope)
	ds.observer.TaskCommitted(TaskAnnotation, record.Annotation.ClassName)
	return annotation, nil
}

// Plot runs a clone of plotter and records the representation together with
// the processing chain of the plotted data.
func (ds *Dataset) Plot(plotter Plotter) (Plotter, error) {
	if plotter == nil {
		return nil, ErrMissingPlotter
	}
	plotter = plotter.Clone()
	if err := checkApplicable(plotter, ds); err != nil {
		return nil, err
	}
	if err := plotter.Plot(ds); err != nil {
		return nil, fmt.Errorf("plot %s: %w", registry.TypeName(plotter), err)
	}

	record := NewPlotHistoryRecord(plotter, ds.packageName)
	record.Plot.Preprocessing = ds.preprocessing()
	ds.representations = append(ds.representations, record)
	ds.tasks = append(ds.tasks, newTask(record))

	ds.logger.Info("plotted", "dataset", ds.id, "plotter", record.Plot.ClassName)
	ds.observer.TaskCommitted(TaskRepresentation, record.Plot.ClassName)
	return plotter, nil
}

// #endregion

// #region delete

// DeleteAnalysis removes the analysis at index. The task log keeps its entry.
func (ds *Dataset) DeleteAnalysis(index int) error {
	out, err := deleteAt(ds.analyses, index)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	ds.analyses = out
	return nil
}

// DeleteAnnotation removes the annotation at index. The task log keeps its entry.
func (ds *Dataset) DeleteAnnotation(index int) error {
	out, err := deleteAt(ds.annotations, index)
	if err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	ds.annotations = out
	return nil
}

// DeleteRepresentation removes the representation at index. The task log keeps its entry.
func (ds *Dataset) DeleteRepresentation(index int) error {
	out, err := deleteAt(ds.representations, index)
	if err != nil {
		return fmt.Errorf("delete representation: %w", err)
	}
	ds.representations = out
	return nil
}

func deleteAt[T any](s []T, index int) ([]T, error) {
	if index < 0 || index >= len(s) {
		return s, fmt.Errorf("index %d of %d: %w", index, len(s), ErrIndexOutOfRange)
	}
	return append(s[:index:index], s[index+1:]...), nil
}

// #endregion

// #region references

// AddReference records a reference to other, capturing its history.
func (ds *Dataset) AddReference(other *Dataset) error {
	ref, err := NewDatasetReference(other)
	if err != nil {
		return err
	}
	ds.references = append(ds.references, ref)
	return nil
}

// RemoveReference removes the first reference with id. Unknown ids are ignored.
func (ds *Dataset) RemoveReference(id string) {
	for i, ref := range ds.references {
		if ref.ID == id {
			ds.references = append(ds.references[:i:i], ds.references[i+1:]...)
			return
		}
	}
}

// #endregion

// #region clone

// Clone returns a deep copy sharing only the logger. The copy starts without
// an observer.
func (ds *Dataset) Clone() *Dataset {
	if ds == nil {
		return nil
	}
	cp := *ds
	cp.observer = nopObserver{}
	cp.data = ds.data.Clone()
	cp.origdata = ds.origdata.Clone()
	cp.history = cloneHistory(ds.history)
	cp.analyses = ds.Analyses()
	cp.annotations = ds.Annotations()
	cp.representations = ds.Representations()
	cp.references = ds.References()
	cp.tasks = make([]Task, len(ds.tasks))
	// Task records alias the typed logs so both stay in step after cloning.
	for i, t := range ds.tasks {
		cp.tasks[i] = relinkTask(ds, &cp, t)
	}
	return &cp
}

// relinkTask maps a task of src onto the matching record of dst, falling back
// to a copy for records that were deleted from their typed log.
func relinkTask(src, dst *Dataset, t Task) Task {
	switch r := t.Record.(type) {
	case *ProcessingHistoryRecord:
		for i, h := range src.history {
			if h == r {
				return Task{Kind: t.Kind, Record: dst.history[i]}
			}
		}
	case *AnalysisHistoryRecord:
		for i, h := range src.analyses {
			if h == r {
				return Task{Kind: t.Kind, Record: dst.analyses[i]}
			}
		}
	case *AnnotationHistoryRecord:
		for i, h := range src.annotations {
			if h == r {
				return Task{Kind: t.Kind, Record: dst.annotations[i]}
			}
		}
	case *PlotHistoryRecord:
		for i, h := range src.representations {
			if h == r {
				return Task{Kind: t.Kind, Record: dst.representations[i]}
			}
		}
	}
	return t.Clone()
}

// CloneValue lets analysis results holding datasets be copied generically.
func (ds *Dataset) CloneValue() any { return ds.Clone() }

// #endregion
