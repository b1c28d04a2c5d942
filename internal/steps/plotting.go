package steps

import (
	"errors"
	"math"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

// Plotters here compute the state a rendered figure would have (limits,
// labels, point counts) and record it. Rendering is left to other tools.

// #region single-plotter
// SinglePlotter records a plot of one dataset.
type SinglePlotter struct{ dataset.PlotAttrs }

// NewSinglePlotter creates a plotter with an empty caption.
func NewSinglePlotter() *SinglePlotter {
	p := &SinglePlotter{}
	p.Description = "Plot of one dataset"
	return p
}

func (p *SinglePlotter) Plot(ds *dataset.Dataset) error {
	d := ds.Data()
	props := map[string]any{"points": len(d.Values)}
	if lo, hi, ok := limits(d.Values); ok {
		props["ylim"] = []float64{lo, hi}
	}
	if len(d.Axes) > 0 {
		last := d.Axes[len(d.Axes)-1]
		if last.Quantity != "" {
			props["ylabel"] = last.Quantity
		}
	}
	if p.Label == "" {
		p.Label = ds.Label()
	}
	p.Properties = mergeProperties(p.Properties, props)
	return nil
}

func (p *SinglePlotter) Clone() dataset.Plotter { return &SinglePlotter{PlotAttrs: p.CloneAttrs()} }

// #endregion single-plotter

// #region multi-plotter
// MultiPlotter records a plot of several datasets in one figure.
type MultiPlotter struct{ dataset.PlotAttrs }

// NewMultiPlotter creates a plotter with an empty caption.
func NewMultiPlotter() *MultiPlotter {
	p := &MultiPlotter{}
	p.Description = "Plot of several datasets"
	return p
}

func (p *MultiPlotter) PlotMany(datasets []*dataset.Dataset) error {
	if len(datasets) == 0 {
		return errors.New("nothing to plot")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	labels := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		if l, h, ok := limits(ds.Data().Values); ok {
			lo, hi = math.Min(lo, l), math.Max(hi, h)
		}
		labels = append(labels, ds.Label())
	}
	props := map[string]any{"datasets": len(datasets), "legend": labels}
	if !math.IsInf(lo, 1) {
		props["ylim"] = []float64{lo, hi}
	}
	p.Properties = mergeProperties(p.Properties, props)
	return nil
}

func (p *MultiPlotter) Clone() dataset.MultiPlotter { return &MultiPlotter{PlotAttrs: p.CloneAttrs()} }

// #endregion multi-plotter

func limits(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, true
}

// mergeProperties overlays computed properties on the ones set by the caller.
func mergeProperties(set, computed map[string]any) map[string]any {
	out := make(map[string]any, len(set)+len(computed))
	for k, v := range set {
		out[k] = v
	}
	for k, v := range computed {
		out[k] = v
	}
	return out
}
