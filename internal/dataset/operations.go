package dataset

import (
	"github.com/danielpatrickdp/reprolab/internal/dict"
	"github.com/danielpatrickdp/reprolab/internal/registry"
)

// Operations are supplied by callers. Each family embeds its attribute struct,
// which carries the portable state a record captures, and defines Clone so the
// dataset can isolate what it executes from what the caller holds.

// #region processing
// ProcessingAttrs is the portable state of a processing step.
type ProcessingAttrs struct {
	Description string
	Parameters  map[string]any
	Comment     string
	// Undoable marks a step that does not advance the dataset's baseline.
	Undoable bool
}

// ProcessingAttributes gives records access to the embedded attributes.
func (a *ProcessingAttrs) ProcessingAttributes() *ProcessingAttrs { return a }

// CloneAttrs returns a deep copy.
func (a ProcessingAttrs) CloneAttrs() ProcessingAttrs {
	a.Parameters = dict.CloneMap(a.Parameters)
	return a
}

// ProcessingStep mutates a dataset's data in place.
type ProcessingStep interface {
	ProcessingAttributes() *ProcessingAttrs
	Process(ds *Dataset) error
	Clone() ProcessingStep
}

// #endregion processing

// #region analysis
// AnalysisAttrs is the portable state of an analysis step.
type AnalysisAttrs struct {
	Description string
	Parameters  map[string]any
	Comment     string
	Result      any
	// Preprocessing is filled by the dataset before the analysis runs.
	Preprocessing []*ProcessingStepRecord
}

// AnalysisAttributes gives records access to the embedded attributes.
func (a *AnalysisAttrs) AnalysisAttributes() *AnalysisAttrs { return a }

// CloneAttrs returns a deep copy.
func (a AnalysisAttrs) CloneAttrs() AnalysisAttrs {
	a.Parameters = dict.CloneMap(a.Parameters)
	a.Result = cloneResult(a.Result)
	a.Preprocessing = cloneStepRecords(a.Preprocessing)
	return a
}

// AnalysisStep computes a result from a dataset without changing its data.
type AnalysisStep interface {
	AnalysisAttributes() *AnalysisAttrs
	Analyse(ds *Dataset) error
	Clone() AnalysisStep
}

func cloneResult(v any) any {
	if ds, ok := v.(*Dataset); ok {
		return ds.Clone()
	}
	return dict.CloneValue(v)
}

// #endregion analysis

// #region annotation
// DefaultScope is assigned to annotations without a scope.
const DefaultScope = "dataset"

// AnnotationAttrs is the portable state of an annotation.
type AnnotationAttrs struct {
	Content map[string]any
	Scope   string
}

// AnnotationAttributes gives records access to the embedded attributes.
func (a *AnnotationAttrs) AnnotationAttributes() *AnnotationAttrs { return a }

// CloneAttrs returns a deep copy.
func (a AnnotationAttrs) CloneAttrs() AnnotationAttrs {
	a.Content = dict.CloneMap(a.Content)
	return a
}

// Annotation attaches content to a dataset.
type Annotation interface {
	AnnotationAttributes() *AnnotationAttrs
	Annotate(ds *Dataset) error
	Clone() Annotation
}

// #endregion annotation

// #region plotting
// Caption describes a figure.
type Caption struct {
	Title      string
	Text       string
	Parameters []string
}

// PlotAttrs is the portable state of a plotter.
type PlotAttrs struct {
	Description string
	Parameters  map[string]any
	Properties  map[string]any
	Caption     Caption
	Label       string
	Filename    string
	Comment     string
}

// PlotAttributes gives records access to the embedded attributes.
func (a *PlotAttrs) PlotAttributes() *PlotAttrs { return a }

// CloneAttrs returns a deep copy.
func (a PlotAttrs) CloneAttrs() PlotAttrs {
	a.Parameters = dict.CloneMap(a.Parameters)
	a.Properties = dict.CloneMap(a.Properties)
	a.Caption.Parameters = append([]string(nil), a.Caption.Parameters...)
	return a
}

// Plotter renders a representation of one dataset.
type Plotter interface {
	PlotAttributes() *PlotAttrs
	Plot(ds *Dataset) error
	Clone() Plotter
}

// MultiPlotter renders several datasets into one representation.
type MultiPlotter interface {
	PlotAttributes() *PlotAttrs
	PlotMany(datasets []*Dataset) error
	Clone() MultiPlotter
}

// #endregion plotting

// #region applicability
// Applicabler is implemented by operations that only work on some datasets.
type Applicabler interface {
	Applicable(ds *Dataset) bool
}

func checkApplicable(op any, ds *Dataset) error {
	if a, ok := op.(Applicabler); ok && !a.Applicable(ds) {
		return &NotApplicableError{Operation: registry.TypeName(op), DatasetID: ds.id}
	}
	return nil
}

// #endregion applicability

// #region registries
// Registries used to turn records back into live operations.
var (
	ProcessingSteps = registry.New[ProcessingStep]("processing step")
	AnalysisSteps   = registry.New[AnalysisStep]("analysis step")
	Annotations     = registry.New[Annotation]("annotation")
	Plotters        = registry.New[Plotter]("plotter")
	MultiPlotters   = registry.New[MultiPlotter]("multiplotter")
)

// #endregion registries
