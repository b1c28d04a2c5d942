package dataset

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/reprolab/internal/dict"
	"github.com/danielpatrickdp/reprolab/internal/sysinfo"
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// #region history-record
// HistoryRecord stamps a step record with the time and environment it was created in.
type HistoryRecord struct {
	date    time.Time
	sysinfo sysinfo.SystemInfo
}

// NewHistoryRecord captures the current time and a SystemInfo for packageName.
func NewHistoryRecord(packageName string) HistoryRecord {
	return HistoryRecord{date: now(), sysinfo: sysinfo.New(packageName)}
}

// Date returns the creation time.
func (r HistoryRecord) Date() time.Time { return r.date }

// SysInfo returns a copy of the environment snapshot.
func (r HistoryRecord) SysInfo() sysinfo.SystemInfo { return r.sysinfo.Clone() }

func (r HistoryRecord) clone() HistoryRecord {
	r.sysinfo = r.sysinfo.Clone()
	return r
}

// ToDict exports date and sysinfo.
func (r HistoryRecord) ToDict() *dict.Dict {
	return dict.New().
		Set("date", dict.FormatTime(r.date)).
		Set("sysinfo", r.sysinfo.ToDict())
}

// FromDict sets date and sysinfo when present. Only used when loading persisted state.
func (r *HistoryRecord) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	if d.Has("date") {
		t, err := d.Time("date")
		if err != nil {
			return err
		}
		r.date = t
	}
	if s := d.Dict("sysinfo"); s != nil {
		if err := r.sysinfo.FromDict(s); err != nil {
			return fmt.Errorf("sysinfo: %w", err)
		}
	}
	return nil
}

// #endregion history-record

// #region processing-history-record
// ProcessingHistoryRecord is one entry of a dataset's processing history.
type ProcessingHistoryRecord struct {
	HistoryRecord
	Processing *ProcessingStepRecord
}

// NewProcessingHistoryRecord records step on behalf of packageName.
func NewProcessingHistoryRecord(step ProcessingStep, packageName string) *ProcessingHistoryRecord {
	return &ProcessingHistoryRecord{
		HistoryRecord: NewHistoryRecord(packageName),
		Processing:    NewProcessingStepRecord(step),
	}
}

// Undoable reports the step's reversibility as frozen when the record was made.
func (r *ProcessingHistoryRecord) Undoable() bool {
	return r.Processing != nil && r.Processing.Undoable
}

// CreateProcessingStep reconstructs the recorded step.
func (r *ProcessingHistoryRecord) CreateProcessingStep() (ProcessingStep, error) {
	if r.Processing == nil {
		return nil, ErrMissingProcessingStep
	}
	return r.Processing.CreateProcessingStep()
}

// Replay reconstructs the step and applies it to ds without touching its history.
func (r *ProcessingHistoryRecord) Replay(ds *Dataset) error {
	if ds == nil {
		return ErrMissingDataset
	}
	step, err := r.CreateProcessingStep()
	if err != nil {
		ds.observer.ReconstructionFailed(TaskProcessing, r.className())
		return fmt.Errorf("replay: %w", err)
	}
	if err := checkApplicable(step, ds); err != nil {
		return err
	}
	if err := step.Process(ds); err != nil {
		return fmt.Errorf("replay %s: %w", r.className(), err)
	}
	return nil
}

func (r *ProcessingHistoryRecord) className() string {
	if r.Processing == nil {
		return ""
	}
	return r.Processing.ClassName
}

// Clone returns a deep copy.
func (r *ProcessingHistoryRecord) Clone() *ProcessingHistoryRecord {
	if r == nil {
		return nil
	}
	return &ProcessingHistoryRecord{HistoryRecord: r.HistoryRecord.clone(), Processing: r.Processing.Clone()}
}

// ToDict exports the record.
func (r *ProcessingHistoryRecord) ToDict() *dict.Dict {
	d := r.HistoryRecord.ToDict()
	if r.Processing != nil {
		d.Set("processing", r.Processing.ToDict())
	}
	return d
}

// FromDict sets the known fields present in d.
func (r *ProcessingHistoryRecord) FromDict(d *dict.Dict) error {
	if err := r.HistoryRecord.FromDict(d); err != nil {
		return err
	}
	if p := d.Dict("processing"); p != nil {
		if r.Processing == nil {
			r.Processing = &ProcessingStepRecord{}
		}
		return r.Processing.FromDict(p)
	}
	return nil
}

func (*ProcessingHistoryRecord) taskKind() TaskKind { return TaskProcessing }

func cloneHistory(in []*ProcessingHistoryRecord) []*ProcessingHistoryRecord {
	if in == nil {
		return nil
	}
	out := make([]*ProcessingHistoryRecord, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// #endregion processing-history-record

// #region analysis-history-record
// AnalysisHistoryRecord is one entry of a dataset's analyses.
type AnalysisHistoryRecord struct {
	HistoryRecord
	Analysis *SingleAnalysisStepRecord
}

// NewAnalysisHistoryRecord records step on behalf of packageName.
func NewAnalysisHistoryRecord(step AnalysisStep, packageName string) *AnalysisHistoryRecord {
	return &AnalysisHistoryRecord{
		HistoryRecord: NewHistoryRecord(packageName),
		Analysis:      NewSingleAnalysisStepRecord(step),
	}
}

// CreateAnalysisStep reconstructs the recorded step.
func (r *AnalysisHistoryRecord) CreateAnalysisStep() (AnalysisStep, error) {
	if r.Analysis == nil {
		return nil, ErrMissingAnalysisStep
	}
	return r.Analysis.CreateAnalysisStep()
}

// Replay reconstructs the analysis and runs it through ds.Analyse, which
// appends a fresh record.
func (r *AnalysisHistoryRecord) Replay(ds *Dataset) (AnalysisStep, error) {
	if ds == nil {
		return nil, ErrMissingDataset
	}
	step, err := r.CreateAnalysisStep()
	if err != nil {
		if r.Analysis != nil {
			ds.observer.ReconstructionFailed(TaskAnalysis, r.Analysis.ClassName)
		}
		return nil, fmt.Errorf("replay: %w", err)
	}
	return ds.Analyse(step)
}

// Clone returns a deep copy.
func (r *AnalysisHistoryRecord) Clone() *AnalysisHistoryRecord {
	if r == nil {
		return nil
	}
	return &AnalysisHistoryRecord{HistoryRecord: r.HistoryRecord.clone(), Analysis: r.Analysis.Clone()}
}

// ToDict exports the record.
func (r *AnalysisHistoryRecord) ToDict() *dict.Dict {
	d := r.HistoryRecord.ToDict()
	if r.Analysis != nil {
		d.Set("analysis", r.Analysis.ToDict())
	}
	return d
}

// FromDict sets the known fields present in d.
func (r *AnalysisHistoryRecord) FromDict(d *dict.Dict) error {
	if err := r.HistoryRecord.FromDict(d); err != nil {
		return err
	}
	if a := d.Dict("analysis"); a != nil {
		if r.Analysis == nil {
			r.Analysis = &SingleAnalysisStepRecord{}
		}
		return r.Analysis.FromDict(a)
	}
	return nil
}

func (*AnalysisHistoryRecord) taskKind() TaskKind { return TaskAnalysis }

// #endregion analysis-history-record

// #region annotation-history-record
// AnnotationHistoryRecord is one entry of a dataset's annotations.
type AnnotationHistoryRecord struct {
	HistoryRecord
	Annotation *AnnotationRecord
}

// NewAnnotationHistoryRecord records annotation on behalf of packageName.
func NewAnnotationHistoryRecord(annotation Annotation, packageName string) *AnnotationHistoryRecord {
	return &AnnotationHistoryRecord{
		HistoryRecord: NewHistoryRecord(packageName),
		Annotation:    NewAnnotationRecord(annotation),
	}
}

// Replay reconstructs the annotation and attaches it to ds, appending a fresh record.
func (r *AnnotationHistoryRecord) Replay(ds *Dataset) error {
	if ds == nil {
		return ErrMissingDataset
	}
	if r.Annotation == nil {
		return ErrMissingAnnotation
	}
	annotation, err := r.Annotation.CreateAnnotation()
	if err != nil {
		ds.observer.ReconstructionFailed(TaskAnnotation, r.Annotation.ClassName)
		return fmt.Errorf("replay: %w", err)
	}
	_, err = ds.Annotate(annotation)
	return err
}

// Clone returns a deep copy.
func (r *AnnotationHistoryRecord) Clone() *AnnotationHistoryRecord {
	if r == nil {
		return nil
	}
	return &AnnotationHistoryRecord{HistoryRecord: r.HistoryRecord.clone(), Annotation: r.Annotation.Clone()}
}

// ToDict exports the record.
func (r *AnnotationHistoryRecord) ToDict() *dict.Dict {
	d := r.HistoryRecord.ToDict()
	if r.Annotation != nil {
		d.Set("annotation", r.Annotation.ToDict())
	}
	return d
}

// FromDict sets the known fields present in d.
func (r *AnnotationHistoryRecord) FromDict(d *dict.Dict) error {
	if err := r.HistoryRecord.FromDict(d); err != nil {
		return err
	}
	if a := d.Dict("annotation"); a != nil {
		if r.Annotation == nil {
			r.Annotation = &AnnotationRecord{}
		}
		return r.Annotation.FromDict(a)
	}
	return nil
}

func (*AnnotationHistoryRecord) taskKind() TaskKind { return TaskAnnotation }

// #endregion annotation-history-record

// #region plot-history-record
// PlotHistoryRecord is one entry of a dataset's representations.
type PlotHistoryRecord struct {
	HistoryRecord
	Plot *SinglePlotRecord
}

// NewPlotHistoryRecord records plotter on behalf of packageName.
func NewPlotHistoryRecord(plotter Plotter, packageName string) *PlotHistoryRecord {
	return &PlotHistoryRecord{
		HistoryRecord: NewHistoryRecord(packageName),
		Plot:          NewSinglePlotRecord(plotter),
	}
}

// Replay reconstructs the plotter and plots ds again, appending a fresh record.
func (r *PlotHistoryRecord) Replay(ds *Dataset) error {
	if ds == nil {
		return ErrMissingDataset
	}
	if r.Plot == nil {
		return ErrMissingPlotter
	}
	plotter, err := r.Plot.CreatePlotter()
	if err != nil {
		ds.observer.ReconstructionFailed(TaskRepresentation, r.Plot.ClassName)
		return fmt.Errorf("replay: %w", err)
	}
	_, err = ds.Plot(plotter)
	return err
}

// Clone returns a deep copy.
func (r *PlotHistoryRecord) Clone() *PlotHistoryRecord {
	if r == nil {
		return nil
	}
	return &PlotHistoryRecord{HistoryRecord: r.HistoryRecord.clone(), Plot: r.Plot.Clone()}
}

// ToDict exports the record.
func (r *PlotHistoryRecord) ToDict() *dict.Dict {
	d := r.HistoryRecord.ToDict()
	if r.Plot != nil {
		d.Set("plot", r.Plot.ToDict())
	}
	return d
}

// FromDict sets the known fields present in d.
func (r *PlotHistoryRecord) FromDict(d *dict.Dict) error {
	if err := r.HistoryRecord.FromDict(d); err != nil {
		return err
	}
	if p := d.Dict("plot"); p != nil {
		if r.Plot == nil {
			r.Plot = &SinglePlotRecord{}
		}
		return r.Plot.FromDict(p)
	}
	return nil
}

func (*PlotHistoryRecord) taskKind() TaskKind { return TaskRepresentation }

// #endregion plot-history-record
