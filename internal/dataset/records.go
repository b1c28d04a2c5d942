package dataset

import (
	"fmt"

	"github.com/danielpatrickdp/reprolab/internal/dict"
	"github.com/danielpatrickdp/reprolab/internal/registry"
)

// Step records hold the portable state of one operation. They never keep a
// reference to the operation they were built from, and they stay valid when
// the operation's type is not available to turn them back into a live object.

// #region processing-step-record
// ProcessingStepRecord captures a processing step.
type ProcessingStepRecord struct {
	ClassName   string
	Description string
	Parameters  map[string]any
	Comment     string
	Undoable    bool
}

// NewProcessingStepRecord builds a record from step; a nil step yields an empty record.
func NewProcessingStepRecord(step ProcessingStep) *ProcessingStepRecord {
	r := &ProcessingStepRecord{}
	if step != nil {
		r.FromProcessingStep(step)
	}
	return r
}

// FromProcessingStep copies the portable attributes of step.
func (r *ProcessingStepRecord) FromProcessingStep(step ProcessingStep) {
	attrs := step.ProcessingAttributes().CloneAttrs()
	r.ClassName = registry.TypeName(step)
	r.Description = attrs.Description
	r.Parameters = attrs.Parameters
	r.Comment = attrs.Comment
	r.Undoable = attrs.Undoable
}

// CreateProcessingStep instantiates ClassName and copies the captured attributes onto it.
func (r *ProcessingStepRecord) CreateProcessingStep() (ProcessingStep, error) {
	step, err := ProcessingSteps.New(r.ClassName)
	if err != nil {
		return nil, err
	}
	attrs := step.ProcessingAttributes()
	attrs.Description = r.Description
	attrs.Parameters = dict.CloneMap(r.Parameters)
	attrs.Comment = r.Comment
	attrs.Undoable = r.Undoable
	return step, nil
}

// Clone returns a deep copy.
func (r *ProcessingStepRecord) Clone() *ProcessingStepRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Parameters = dict.CloneMap(r.Parameters)
	return &cp
}

// ToDict exports the record.
func (r *ProcessingStepRecord) ToDict() *dict.Dict {
	return dict.New().
		Set("class_name", r.ClassName).
		Set("description", r.Description).
		Set("parameters", dict.MapToDict(r.Parameters)).
		Set("comment", r.Comment).
		Set("undoable", r.Undoable)
}

// FromDict sets the known fields present in d.
func (r *ProcessingStepRecord) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	if d.Has("class_name") {
		r.ClassName = d.String("class_name")
	}
	if d.Has("description") {
		r.Description = d.String("description")
	}
	if d.Has("parameters") {
		r.Parameters = dict.DictToMap(d.Dict("parameters"))
	}
	if d.Has("comment") {
		r.Comment = d.String("comment")
	}
	if d.Has("undoable") {
		r.Undoable = d.Bool("undoable")
	}
	return nil
}

func cloneStepRecords(in []*ProcessingStepRecord) []*ProcessingStepRecord {
	if in == nil {
		return nil
	}
	out := make([]*ProcessingStepRecord, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// #endregion processing-step-record

// #region analysis-step-record
// AnalysisStepRecord captures an analysis step, including its result.
type AnalysisStepRecord struct {
	ClassName   string
	Description string
	Parameters  map[string]any
	Comment     string
	Result      any
}

// NewAnalysisStepRecord builds a record from step; a nil step yields an empty record.
func NewAnalysisStepRecord(step AnalysisStep) *AnalysisStepRecord {
	r := &AnalysisStepRecord{}
	if step != nil {
		r.FromAnalysisStep(step)
	}
	return r
}

// FromAnalysisStep copies the portable attributes of step.
func (r *AnalysisStepRecord) FromAnalysisStep(step AnalysisStep) {
	attrs := step.AnalysisAttributes().CloneAttrs()
	r.ClassName = registry.TypeName(step)
	r.Description = attrs.Description
	r.Parameters = attrs.Parameters
	r.Comment = attrs.Comment
	r.Result = attrs.Result
}

// CreateAnalysisStep instantiates ClassName and copies the captured attributes onto it.
func (r *AnalysisStepRecord) CreateAnalysisStep() (AnalysisStep, error) {
	step, err := AnalysisSteps.New(r.ClassName)
	if err != nil {
		return nil, err
	}
	attrs := step.AnalysisAttributes()
	attrs.Description = r.Description
	attrs.Parameters = dict.CloneMap(r.Parameters)
	attrs.Comment = r.Comment
	attrs.Result = cloneResult(r.Result)
	return step, nil
}

// Clone returns a deep copy.
func (r *AnalysisStepRecord) Clone() *AnalysisStepRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Parameters = dict.CloneMap(r.Parameters)
	cp.Result = cloneResult(r.Result)
	return &cp
}

// ToDict exports the record.
func (r *AnalysisStepRecord) ToDict() *dict.Dict {
	return dict.New().
		Set("class_name", r.ClassName).
		Set("description", r.Description).
		Set("parameters", dict.MapToDict(r.Parameters)).
		Set("comment", r.Comment).
		Set("result", resultToDict(r.Result))
}

// FromDict sets the known fields present in d.
func (r *AnalysisStepRecord) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	if d.Has("class_name") {
		r.ClassName = d.String("class_name")
	}
	if d.Has("description") {
		r.Description = d.String("description")
	}
	if d.Has("parameters") {
		r.Parameters = dict.DictToMap(d.Dict("parameters"))
	}
	if d.Has("comment") {
		r.Comment = d.String("comment")
	}
	if d.Has("result") {
		v, _ := d.Get("result")
		r.Result = resultFromDict(v)
	}
	return nil
}

// Result documents carry a kind so datasets and plain maps decode back to
// what they were.
const (
	resultKindDataset = "dataset"
	resultKindMap     = "map"
)

// resultToDict exports results: datasets and documents as tagged documents,
// anything else as is.
func resultToDict(v any) any {
	switch t := v.(type) {
	case *Dataset:
		return dict.New().Set("kind", resultKindDataset).Set("dataset", t.ToDict())
	case dict.Dicter:
		return dict.New().Set("kind", resultKindMap).Set("map", t.ToDict())
	case map[string]any:
		return dict.New().Set("kind", resultKindMap).Set("map", dict.MapToDict(t))
	default:
		return dict.CloneValue(v)
	}
}

func resultFromDict(v any) any {
	doc, ok := v.(*dict.Dict)
	if !ok {
		return dict.CloneValue(v)
	}
	switch doc.String("kind") {
	case resultKindDataset:
		ds := New()
		if err := ds.FromDict(doc.Dict("dataset")); err == nil {
			return ds
		}
	case resultKindMap:
		if inner := doc.Dict("map"); inner != nil {
			return dict.DictToMap(inner)
		}
	}
	return dict.DictToMap(doc)
}

// #endregion analysis-step-record

// #region single-analysis-step-record
// SingleAnalysisStepRecord is an analysis of one dataset together with the
// processing that dataset had undergone when the analysis ran.
type SingleAnalysisStepRecord struct {
	AnalysisStepRecord
	Preprocessing []*ProcessingStepRecord
}

// NewSingleAnalysisStepRecord builds a record from step; a nil step yields an empty record.
func NewSingleAnalysisStepRecord(step AnalysisStep) *SingleAnalysisStepRecord {
	r := &SingleAnalysisStepRecord{}
	if step != nil {
		r.FromAnalysisStep(step)
	}
	return r
}

// FromAnalysisStep copies the portable attributes of step, including its preprocessing.
func (r *SingleAnalysisStepRecord) FromAnalysisStep(step AnalysisStep) {
	r.AnalysisStepRecord.FromAnalysisStep(step)
	r.Preprocessing = cloneStepRecords(step.AnalysisAttributes().Preprocessing)
}

// CreateAnalysisStep instantiates ClassName with the captured attributes and preprocessing.
func (r *SingleAnalysisStepRecord) CreateAnalysisStep() (AnalysisStep, error) {
	step, err := r.AnalysisStepRecord.CreateAnalysisStep()
	if err != nil {
		return nil, err
	}
	step.AnalysisAttributes().Preprocessing = cloneStepRecords(r.Preprocessing)
	return step, nil
}

// Clone returns a deep copy.
func (r *SingleAnalysisStepRecord) Clone() *SingleAnalysisStepRecord {
	if r == nil {
		return nil
	}
	return &SingleAnalysisStepRecord{
		AnalysisStepRecord: *r.AnalysisStepRecord.Clone(),
		Preprocessing:      cloneStepRecords(r.Preprocessing),
	}
}

// ToDict exports the record.
func (r *SingleAnalysisStepRecord) ToDict() *dict.Dict {
	pre := make([]any, len(r.Preprocessing))
	for i, p := range r.Preprocessing {
		pre[i] = p.ToDict()
	}
	return r.AnalysisStepRecord.ToDict().Set("preprocessing", pre)
}

// FromDict sets the known fields present in d.
func (r *SingleAnalysisStepRecord) FromDict(d *dict.Dict) error {
	if err := r.AnalysisStepRecord.FromDict(d); err != nil {
		return err
	}
	if d == nil || !d.Has("preprocessing") {
		return nil
	}
	docs := d.Dicts("preprocessing")
	r.Preprocessing = make([]*ProcessingStepRecord, len(docs))
	for i, doc := range docs {
		rec := &ProcessingStepRecord{}
		if err := rec.FromDict(doc); err != nil {
			return fmt.Errorf("preprocessing %d: %w", i, err)
		}
		r.Preprocessing[i] = rec
	}
	return nil
}

// #endregion single-analysis-step-record

// #region annotation-record
// AnnotationRecord captures an annotation.
type AnnotationRecord struct {
	ClassName string
	Content   map[string]any
	Scope     string
}

// NewAnnotationRecord builds a record from annotation; nil yields an empty record.
func NewAnnotationRecord(annotation Annotation) *AnnotationRecord {
	r := &AnnotationRecord{}
	if annotation != nil {
		r.FromAnnotation(annotation)
	}
	return r
}

// FromAnnotation copies the portable attributes of annotation.
func (r *AnnotationRecord) FromAnnotation(annotation Annotation) {
	attrs := annotation.AnnotationAttributes().CloneAttrs()
	r.ClassName = registry.TypeName(annotation)
	r.Content = attrs.Content
	r.Scope = attrs.Scope
}

// CreateAnnotation instantiates ClassName and copies the captured attributes onto it.
func (r *AnnotationRecord) CreateAnnotation() (Annotation, error) {
	annotation, err := Annotations.New(r.ClassName)
	if err != nil {
		return nil, err
	}
	attrs := annotation.AnnotationAttributes()
	attrs.Content = dict.CloneMap(r.Content)
	attrs.Scope = r.Scope
	return annotation, nil
}

// Clone returns a deep copy.
func (r *AnnotationRecord) Clone() *AnnotationRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Content = dict.CloneMap(r.Content)
	return &cp
}

// ToDict exports the record.
func (r *AnnotationRecord) ToDict() *dict.Dict {
	return dict.New().
		Set("class_name", r.ClassName).
		Set("content", dict.MapToDict(r.Content)).
		Set("scope", r.Scope)
}

// FromDict sets the known fields present in d.
func (r *AnnotationRecord) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	if d.Has("class_name") {
		r.ClassName = d.String("class_name")
	}
	if d.Has("content") {
		r.Content = dict.DictToMap(d.Dict("content"))
	}
	if d.Has("scope") {
		r.Scope = d.String("scope")
	}
	return nil
}

// #endregion annotation-record

// #region plot-record
// PlotRecord captures the state of a plotter.
type PlotRecord struct {
	ClassName   string
	Description string
	Parameters  map[string]any
	Properties  map[string]any
	Caption     Caption
	Label       string
	Filename    string
	Comment     string
}

func (r *PlotRecord) fromAttrs(className string, a *PlotAttrs) {
	attrs := a.CloneAttrs()
	r.ClassName = className
	r.Description = attrs.Description
	r.Parameters = attrs.Parameters
	r.Properties = attrs.Properties
	r.Caption = attrs.Caption
	r.Label = attrs.Label
	r.Filename = attrs.Filename
	r.Comment = attrs.Comment
}

func (r *PlotRecord) toAttrs(a *PlotAttrs) {
	a.Description = r.Description
	a.Parameters = dict.CloneMap(r.Parameters)
	a.Properties = dict.CloneMap(r.Properties)
	a.Caption = Caption{
		Title:      r.Caption.Title,
		Text:       r.Caption.Text,
		Parameters: append([]string(nil), r.Caption.Parameters...),
	}
	a.Label = r.Label
	a.Filename = r.Filename
	a.Comment = r.Comment
}

func (r PlotRecord) clone() PlotRecord {
	r.Parameters = dict.CloneMap(r.Parameters)
	r.Properties = dict.CloneMap(r.Properties)
	r.Caption.Parameters = append([]string(nil), r.Caption.Parameters...)
	return r
}

// ToDict exports the record.
func (r *PlotRecord) ToDict() *dict.Dict {
	return dict.New().
		Set("class_name", r.ClassName).
		Set("description", r.Description).
		Set("parameters", dict.MapToDict(r.Parameters)).
		Set("properties", dict.MapToDict(r.Properties)).
		Set("caption", dict.New().
			Set("title", r.Caption.Title).
			Set("text", r.Caption.Text).
			Set("parameters", append([]string(nil), r.Caption.Parameters...))).
		Set("label", r.Label).
		Set("filename", r.Filename).
		Set("comment", r.Comment)
}

// FromDict sets the known fields present in d.
func (r *PlotRecord) FromDict(d *dict.Dict) error {
	if d == nil {
		return nil
	}
	for key, dst := range map[string]*string{
		"class_name":  &r.ClassName,
		"description": &r.Description,
		"label":       &r.Label,
		"filename":    &r.Filename,
		"comment":     &r.Comment,
	} {
		if d.Has(key) {
			*dst = d.String(key)
		}
	}
	if d.Has("parameters") {
		r.Parameters = dict.DictToMap(d.Dict("parameters"))
	}
	if d.Has("properties") {
		r.Properties = dict.DictToMap(d.Dict("properties"))
	}
	if c := d.Dict("caption"); c != nil {
		if c.Has("title") {
			r.Caption.Title = c.String("title")
		}
		if c.Has("text") {
			r.Caption.Text = c.String("text")
		}
		if c.Has("parameters") {
			r.Caption.Parameters = c.Strings("parameters")
		}
	}
	return nil
}

// SinglePlotRecord captures a plotter of one dataset and the processing the
// dataset had undergone when it was plotted.
type SinglePlotRecord struct {
	PlotRecord
	Preprocessing []*ProcessingStepRecord
}

// NewSinglePlotRecord builds a record from plotter; nil yields an empty record.
func NewSinglePlotRecord(plotter Plotter) *SinglePlotRecord {
	r := &SinglePlotRecord{}
	if plotter != nil {
		r.FromPlotter(plotter)
	}
	return r
}

// FromPlotter copies the portable attributes of plotter.
func (r *SinglePlotRecord) FromPlotter(plotter Plotter) {
	r.fromAttrs(registry.TypeName(plotter), plotter.PlotAttributes())
}

// CreatePlotter instantiates ClassName and copies the captured attributes onto it.
func (r *SinglePlotRecord) CreatePlotter() (Plotter, error) {
	plotter, err := Plotters.New(r.ClassName)
	if err != nil {
		return nil, err
	}
	r.toAttrs(plotter.PlotAttributes())
	return plotter, nil
}

// Clone returns a deep copy.
func (r *SinglePlotRecord) Clone() *SinglePlotRecord {
	if r == nil {
		return nil
	}
	return &SinglePlotRecord{PlotRecord: r.PlotRecord.clone(), Preprocessing: cloneStepRecords(r.Preprocessing)}
}

// ToDict exports the record.
func (r *SinglePlotRecord) ToDict() *dict.Dict {
	pre := make([]any, len(r.Preprocessing))
	for i, p := range r.Preprocessing {
		pre[i] = p.ToDict()
	}
	return r.PlotRecord.ToDict().Set("preprocessing", pre)
}

// FromDict sets the known fields present in d.
func (r *SinglePlotRecord) FromDict(d *dict.Dict) error {
	if err := r.PlotRecord.FromDict(d); err != nil {
		return err
	}
	if d == nil || !d.Has("preprocessing") {
		return nil
	}
	docs := d.Dicts("preprocessing")
	r.Preprocessing = make([]*ProcessingStepRecord, len(docs))
	for i, doc := range docs {
		rec := &ProcessingStepRecord{}
		if err := rec.FromDict(doc); err != nil {
			return err
		}
		r.Preprocessing[i] = rec
	}
	return nil
}

// MultiPlotRecord captures a plotter of several datasets, referenced by id.
type MultiPlotRecord struct {
	PlotRecord
	Datasets []string
}

// NewMultiPlotRecord builds a record from plotter and the ids of the plotted datasets.
func NewMultiPlotRecord(plotter MultiPlotter, datasets []*Dataset) *MultiPlotRecord {
	r := &MultiPlotRecord{}
	if plotter != nil {
		r.fromAttrs(registry.TypeName(plotter), plotter.PlotAttributes())
	}
	for _, ds := range datasets {
		if ds != nil {
			r.Datasets = append(r.Datasets, ds.ID())
		}
	}
	return r
}

// CreateMultiPlotter instantiates ClassName and copies the captured attributes onto it.
func (r *MultiPlotRecord) CreateMultiPlotter() (MultiPlotter, error) {
	plotter, err := MultiPlotters.New(r.ClassName)
	if err != nil {
		return nil, err
	}
	r.toAttrs(plotter.PlotAttributes())
	return plotter, nil
}

// ToDict exports the record.
func (r *MultiPlotRecord) ToDict() *dict.Dict {
	return r.PlotRecord.ToDict().Set("datasets", append([]string(nil), r.Datasets...))
}

// FromDict sets the known fields present in d.
func (r *MultiPlotRecord) FromDict(d *dict.Dict) error {
	if err := r.PlotRecord.FromDict(d); err != nil {
		return err
	}
	if d != nil && d.Has("datasets") {
		r.Datasets = d.Strings("datasets")
	}
	return nil
}

// #endregion plot-record
