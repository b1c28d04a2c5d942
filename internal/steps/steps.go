// Package steps provides reference operations for datasets: processing steps,
// an analysis, an annotation and plotters. They are registered with the
// dataset registries on import, so records of them can be replayed.
package steps

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/registry"
)

// #region registration
var prefix = strings.TrimSuffix(registry.TypeName(&Scaling{}), "Scaling")

func init() {
	dataset.ProcessingSteps.MustRegister(func() dataset.ProcessingStep { return NewScaling(1) })
	dataset.ProcessingSteps.MustRegister(func() dataset.ProcessingStep { return NewOffset(0) })
	dataset.ProcessingSteps.MustRegister(func() dataset.ProcessingStep { return NewNormalisation(NormaliseMaximum) })
	dataset.ProcessingSteps.MustRegister(func() dataset.ProcessingStep { return NewCut(0, 0) })
	dataset.AnalysisSteps.MustRegister(func() dataset.AnalysisStep { return NewBasicCharacteristics() })
	dataset.Annotations.MustRegister(func() dataset.Annotation { return NewComment("") })
	dataset.Plotters.MustRegister(func() dataset.Plotter { return NewSinglePlotter() })
	dataset.MultiPlotters.MustRegister(func() dataset.MultiPlotter { return NewMultiPlotter() })
}

// Qualify expands a bare type name such as "Scaling" to the fully-qualified
// name of the operation in this package. Qualified names pass through.
func Qualify(name string) string {
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	return prefix + name
}

// #endregion registration

// #region parameters
func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("parameter %s: expected number, got %T", key, v)
}

func intParam(params map[string]any, key string, def int) (int, error) {
	f, err := floatParam(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("parameter %s: expected integer, got %v", key, f)
	}
	return int(f), nil
}

func stringParam(params map[string]any, key, def string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return def
}

// #endregion parameters
