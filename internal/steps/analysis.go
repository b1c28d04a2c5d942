package steps

import (
	"errors"
	"math"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

// #region basic-characteristics
// BasicCharacteristics computes minimum, maximum, mean and area of the values.
// The result is a map keyed by characteristic.
type BasicCharacteristics struct{ dataset.AnalysisAttrs }

// NewBasicCharacteristics creates the analysis.
func NewBasicCharacteristics() *BasicCharacteristics {
	a := &BasicCharacteristics{}
	a.Description = "Determine basic characteristics of the values"
	return a
}

func (a *BasicCharacteristics) Analyse(ds *dataset.Dataset) error {
	values := ds.Data().Values
	if len(values) == 0 {
		return errors.New("no values to characterise")
	}
	lo, hi, sum, area := math.Inf(1), math.Inf(-1), 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
		area += math.Abs(v)
	}
	a.Result = map[string]any{
		"min":  lo,
		"max":  hi,
		"mean": sum / float64(len(values)),
		"area": area,
	}
	return nil
}

func (a *BasicCharacteristics) Clone() dataset.AnalysisStep {
	return &BasicCharacteristics{AnalysisAttrs: a.CloneAttrs()}
}

// #endregion basic-characteristics
