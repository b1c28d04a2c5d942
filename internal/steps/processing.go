package steps

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

// ErrZeroNorm is returned when normalisation would divide by zero.
var ErrZeroNorm = errors.New("normalisation factor is zero")

// #region scaling
// Scaling multiplies the values by "factor". Undoable.
type Scaling struct{ dataset.ProcessingAttrs }

// NewScaling creates a scaling step.
func NewScaling(factor float64) *Scaling {
	s := &Scaling{}
	s.Description = "Multiply values by a constant factor"
	s.Parameters = map[string]any{"factor": factor}
	s.Undoable = true
	return s
}

func (s *Scaling) Process(ds *dataset.Dataset) error {
	factor, err := floatParam(s.Parameters, "factor", 1)
	if err != nil {
		return err
	}
	values := ds.Data().Values
	for i := range values {
		values[i] *= factor
	}
	return nil
}

func (s *Scaling) Clone() dataset.ProcessingStep { return &Scaling{ProcessingAttrs: s.CloneAttrs()} }

// #endregion scaling

// #region offset
// Offset adds "offset" to the values. Undoable.
type Offset struct{ dataset.ProcessingAttrs }

// NewOffset creates an offset step.
func NewOffset(offset float64) *Offset {
	s := &Offset{}
	s.Description = "Add a constant offset to the values"
	s.Parameters = map[string]any{"offset": offset}
	s.Undoable = true
	return s
}

func (s *Offset) Process(ds *dataset.Dataset) error {
	offset, err := floatParam(s.Parameters, "offset", 0)
	if err != nil {
		return err
	}
	values := ds.Data().Values
	for i := range values {
		values[i] += offset
	}
	return nil
}

func (s *Offset) Clone() dataset.ProcessingStep { return &Offset{ProcessingAttrs: s.CloneAttrs()} }

// #endregion offset

// #region normalisation
const (
	NormaliseMaximum = "maximum"
	NormaliseArea    = "area"
)

// Normalisation divides the values by their maximum absolute value or by
// their area. Undoable.
type Normalisation struct{ dataset.ProcessingAttrs }

// NewNormalisation creates a normalisation step of the given kind.
func NewNormalisation(kind string) *Normalisation {
	s := &Normalisation{}
	s.Description = "Normalise values"
	s.Parameters = map[string]any{"kind": kind}
	s.Undoable = true
	return s
}

func (s *Normalisation) Process(ds *dataset.Dataset) error {
	values := ds.Data().Values
	var norm float64
	switch kind := stringParam(s.Parameters, "kind", NormaliseMaximum); kind {
	case NormaliseMaximum:
		for _, v := range values {
			norm = math.Max(norm, math.Abs(v))
		}
	case NormaliseArea:
		for _, v := range values {
			norm += math.Abs(v)
		}
	default:
		return fmt.Errorf("unknown normalisation kind %q", kind)
	}
	if norm == 0 {
		return ErrZeroNorm
	}
	for i := range values {
		values[i] /= norm
	}
	return nil
}

func (s *Normalisation) Clone() dataset.ProcessingStep {
	return &Normalisation{ProcessingAttrs: s.CloneAttrs()}
}

// #endregion normalisation

// #region cut
// Cut keeps the values in [start, stop) of one-dimensional data. A stop of
// zero or less counts from the end. The removed values are gone for good, so
// Cut is not undoable and advances the dataset's baseline.
type Cut struct{ dataset.ProcessingAttrs }

// NewCut creates a cut step.
func NewCut(start, stop int) *Cut {
	s := &Cut{}
	s.Description = "Cut data to a range"
	s.Parameters = map[string]any{"start": start, "stop": stop}
	return s
}

// Applicable restricts Cut to one-dimensional data.
func (s *Cut) Applicable(ds *dataset.Dataset) bool { return ds.Data().Dims() == 1 }

func (s *Cut) Process(ds *dataset.Dataset) error {
	start, err := intParam(s.Parameters, "start", 0)
	if err != nil {
		return err
	}
	stop, err := intParam(s.Parameters, "stop", 0)
	if err != nil {
		return err
	}
	d := ds.Data()
	n := len(d.Values)
	if stop <= 0 {
		stop += n
	}
	if start < 0 || start >= stop || stop > n {
		return fmt.Errorf("cut [%d, %d) outside %d values", start, stop, n)
	}
	axis := d.Axes[0].Values
	values := append([]float64(nil), d.Values[start:stop]...)
	if err := d.SetValues(values); err != nil {
		return err
	}
	if len(axis) == n {
		d.Axes[0].Values = append([]float64(nil), axis[start:stop]...)
	}
	return nil
}

func (s *Cut) Clone() dataset.ProcessingStep { return &Cut{ProcessingAttrs: s.CloneAttrs()} }

// #endregion cut
