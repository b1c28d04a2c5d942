package dataset

import (
	"fmt"

	"github.com/danielpatrickdp/reprolab/internal/registry"
)

// PlotMany runs a clone of plotter over datasets. Multi-dataset plots belong to
// no single dataset, so nothing is appended to the datasets' logs; the caller
// keeps the returned record.
func PlotMany(plotter MultiPlotter, datasets ...*Dataset) (MultiPlotter, *MultiPlotRecord, error) {
	if plotter == nil {
		return nil, nil, ErrMissingPlotter
	}
	if len(datasets) == 0 {
		return nil, nil, ErrMissingDataset
	}
	plotter = plotter.Clone()
	for _, ds := range datasets {
		if ds == nil {
			return nil, nil, ErrMissingDataset
		}
		if err := checkApplicable(plotter, ds); err != nil {
			return nil, nil, err
		}
	}
	if err := plotter.PlotMany(datasets); err != nil {
		return nil, nil, fmt.Errorf("plot %s: %w", registry.TypeName(plotter), err)
	}
	return plotter, NewMultiPlotRecord(plotter, datasets), nil
}
