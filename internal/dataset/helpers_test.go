package dataset

import (
	"errors"

	"github.com/danielpatrickdp/reprolab/internal/data"
)

// #region test-operations

func paramFloat(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// scaleStep multiplies every value by "factor".
type scaleStep struct{ ProcessingAttrs }

func newScale(factor float64, undoable bool) *scaleStep {
	s := &scaleStep{}
	s.Description = "scale values"
	s.Parameters = map[string]any{"factor": factor}
	s.Undoable = undoable
	return s
}

func (s *scaleStep) Process(ds *Dataset) error {
	f := paramFloat(s.Parameters, "factor")
	for i := range ds.Data().Values {
		ds.Data().Values[i] *= f
	}
	return nil
}

func (s *scaleStep) Clone() ProcessingStep { return &scaleStep{ProcessingAttrs: s.CloneAttrs()} }

// appendStep appends "value" to 1-D data.
type appendStep struct{ ProcessingAttrs }

func newAppend(v float64) *appendStep {
	s := &appendStep{}
	s.Parameters = map[string]any{"value": v}
	s.Undoable = true
	return s
}

func (s *appendStep) Process(ds *Dataset) error {
	values := append(append([]float64(nil), ds.Data().Values...), paramFloat(s.Parameters, "value"))
	return ds.Data().SetValues(values)
}

func (s *appendStep) Clone() ProcessingStep { return &appendStep{ProcessingAttrs: s.CloneAttrs()} }

// dropFirstStep removes the first value and cannot be undone.
type dropFirstStep struct{ ProcessingAttrs }

func newDropFirst() *dropFirstStep {
	s := &dropFirstStep{}
	s.Description = "drop first value"
	return s
}

func (s *dropFirstStep) Process(ds *Dataset) error {
	v := ds.Data().Values
	if len(v) == 0 {
		return errors.New("no values to drop")
	}
	return ds.Data().SetValues(append([]float64(nil), v[1:]...))
}

func (s *dropFirstStep) Clone() ProcessingStep { return &dropFirstStep{ProcessingAttrs: s.CloneAttrs()} }

// pickyStep only applies to 2-D data.
type pickyStep struct{ ProcessingAttrs }

func (s *pickyStep) Applicable(ds *Dataset) bool { return ds.Data().Dims() == 2 }
func (s *pickyStep) Process(*Dataset) error      { return nil }
func (s *pickyStep) Clone() ProcessingStep       { return &pickyStep{ProcessingAttrs: s.CloneAttrs()} }

// failingStep always fails.
type failingStep struct{ ProcessingAttrs }

var errStepFailed = errors.New("step failed")

func (s *failingStep) Process(*Dataset) error { return errStepFailed }
func (s *failingStep) Clone() ProcessingStep  { return &failingStep{ProcessingAttrs: s.CloneAttrs()} }

// halfwayStep changes the first value and then fails.
type halfwayStep struct{ ProcessingAttrs }

func (s *halfwayStep) Process(ds *Dataset) error {
	ds.Data().Values[0] = 999
	return errStepFailed
}

func (s *halfwayStep) Clone() ProcessingStep { return &halfwayStep{ProcessingAttrs: s.CloneAttrs()} }

// unregisteredStep is never registered, so records of it cannot be replayed.
type unregisteredStep struct{ ProcessingAttrs }

func (s *unregisteredStep) Process(ds *Dataset) error {
	for i := range ds.Data().Values {
		ds.Data().Values[i]++
	}
	return nil
}
func (s *unregisteredStep) Clone() ProcessingStep {
	return &unregisteredStep{ProcessingAttrs: s.CloneAttrs()}
}

// sumAnalysis stores the sum of all values as its result.
type sumAnalysis struct{ AnalysisAttrs }

func (a *sumAnalysis) Analyse(ds *Dataset) error {
	var sum float64
	for _, v := range ds.Data().Values {
		sum += v
	}
	a.Result = sum
	return nil
}

func (a *sumAnalysis) Clone() AnalysisStep { return &sumAnalysis{AnalysisAttrs: a.CloneAttrs()} }

// noteAnnotation attaches its content without touching the dataset.
type noteAnnotation struct{ AnnotationAttrs }

func newNote(text string) *noteAnnotation {
	n := &noteAnnotation{}
	if text != "" {
		n.Content = map[string]any{"comment": text}
	}
	return n
}

func (n *noteAnnotation) Annotate(*Dataset) error { return nil }
func (n *noteAnnotation) Clone() Annotation       { return &noteAnnotation{AnnotationAttrs: n.CloneAttrs()} }

// tracePlotter records the plot without rendering anything.
type tracePlotter struct{ PlotAttrs }

func (p *tracePlotter) Plot(ds *Dataset) error {
	p.Properties = map[string]any{"points": len(ds.Data().Values)}
	return nil
}

func (p *tracePlotter) Clone() Plotter { return &tracePlotter{PlotAttrs: p.CloneAttrs()} }

func init() {
	ProcessingSteps.MustRegister(func() ProcessingStep { return &scaleStep{} })
	ProcessingSteps.MustRegister(func() ProcessingStep { return &appendStep{} })
	ProcessingSteps.MustRegister(func() ProcessingStep { return &dropFirstStep{} })
	ProcessingSteps.MustRegister(func() ProcessingStep { return &pickyStep{} })
	ProcessingSteps.MustRegister(func() ProcessingStep { return &failingStep{} })
	AnalysisSteps.MustRegister(func() AnalysisStep { return &sumAnalysis{} })
	Annotations.MustRegister(func() Annotation { return &noteAnnotation{} })
	Plotters.MustRegister(func() Plotter { return &tracePlotter{} })
}

// #endregion

// #region test-observer

type countingObserver struct {
	committed map[TaskKind]int
	undone    int
	redone    int
	replayed  int
	failed    []string
}

func newCountingObserver() *countingObserver {
	return &countingObserver{committed: make(map[TaskKind]int)}
}

func (o *countingObserver) TaskCommitted(kind TaskKind, _ string) { o.committed[kind]++ }
func (o *countingObserver) Undone()                               { o.undone++ }
func (o *countingObserver) Redone()                               { o.redone++ }
func (o *countingObserver) Replayed(steps int)                    { o.replayed += steps }
func (o *countingObserver) ReconstructionFailed(_ TaskKind, className string) {
	o.failed = append(o.failed, className)
}

// #endregion

func newTestDataset(values ...float64) *Dataset {
	return New(WithData(data.MustNew(values)), WithLabel("test"))
}
