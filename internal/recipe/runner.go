package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/steps"
)

// #region types

// Options configure a run.
type Options struct {
	// Importer supplies data for datasets that declare a source.
	Importer dataset.Importer
	// Logger is handed to every dataset. Nil discards.
	Logger *slog.Logger
	// Observer, when set, builds the observer installed on each dataset.
	Observer func(ds *dataset.Dataset) dataset.Observer
	// AutoStrip overrides the recipe setting when true.
	AutoStrip bool
	// StopOnError ends the run at the first failed task.
	StopOnError bool
	// OnStrip is called after a task that discarded undone steps succeeded.
	OnStrip func(ds *dataset.Dataset, dropped int)
}

// Result captures the outcome of one task on one dataset.
type Result struct {
	Index     int
	Kind      string
	Type      string
	DatasetID string
	Action    string // "applied" | "failed"
	// Stripped is the number of undone steps discarded before the task ran.
	Stripped int
	Err      error
}

// Actions reported in Result.Action.
const (
	ActionApplied = "applied"
	ActionFailed  = "failed"
)

// Outcome is everything a run produced.
type Outcome struct {
	Datasets   []*dataset.Dataset
	Results    []Result
	MultiPlots []*dataset.MultiPlotRecord
}

// Dataset returns the dataset with the given id, or nil.
func (o *Outcome) Dataset(id string) *dataset.Dataset {
	for _, ds := range o.Datasets {
		if ds.ID() == id {
			return ds
		}
	}
	return nil
}

// Summary provides aggregate stats from a run.
type Summary struct {
	TotalTasks int
	Applied    int
	Failed     int
	Strips     int
	Undos      int
	Redos      int
}

// #endregion types

// #region run

// Run validates the recipe, creates its datasets and applies its tasks in
// order. Task failures are reported in the results; Run itself fails only when
// the recipe is invalid, a dataset cannot be created, the context ends, or
// StopOnError is set.
func Run(ctx context.Context, r *Recipe, opts Options) (*Outcome, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil recipe", ErrInvalidRecipe)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	autoStrip := opts.AutoStrip || r.Settings.AutoStrip

	sources, err := r.Sources()
	if err != nil {
		return nil, err
	}
	local := dataset.NewMemoryImporter()
	for id, d := range sources {
		local.Add(id, d)
	}

	out := &Outcome{}
	byID := make(map[string]*dataset.Dataset, len(r.Datasets))
	for i := range r.Datasets {
		ds, err := newDataset(&r.Datasets[i], r.Settings, opts, local, logger)
		if err != nil {
			return out, err
		}
		out.Datasets = append(out.Datasets, ds)
		byID[ds.ID()] = ds
	}

	for i, task := range r.Tasks {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		targets := out.Datasets
		if len(task.ApplyTo) > 0 {
			targets = make([]*dataset.Dataset, 0, len(task.ApplyTo))
			for _, id := range task.ApplyTo {
				targets = append(targets, byID[id])
			}
		}

		if task.Kind == KindMultiPlot {
			res := Result{Index: i, Kind: task.Kind, Type: task.Type, Action: ActionApplied}
			record, err := runMultiPlot(task, targets)
			if err != nil {
				res.Action, res.Err = ActionFailed, err
			} else {
				out.MultiPlots = append(out.MultiPlots, record)
			}
			out.Results = append(out.Results, res)
			if err := stop(opts, res); err != nil {
				return out, err
			}
			continue
		}

		for _, ds := range targets {
			res := Result{Index: i, Kind: task.Kind, Type: task.Type, DatasetID: ds.ID(), Action: ActionApplied}
			res.Stripped, res.Err = runTask(task, ds, autoStrip)
			if res.Err != nil {
				res.Action = ActionFailed
				logger.Warn("task failed", "task", i, "kind", task.Kind, "dataset", ds.ID(), "error", res.Err)
			} else if res.Stripped > 0 && opts.OnStrip != nil {
				opts.OnStrip(ds, res.Stripped)
			}
			out.Results = append(out.Results, res)
			if err := stop(opts, res); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func stop(opts Options, res Result) error {
	if opts.StopOnError && res.Err != nil {
		return fmt.Errorf("task %d (%s %s): %w", res.Index, res.Kind, res.Type, res.Err)
	}
	return nil
}

// newDataset builds one declared dataset. A source declared with values in the
// same recipe is served by local; any other source goes to opts.Importer.
func newDataset(spec *DatasetSpec, settings Settings, opts Options, local *dataset.MemoryImporter, logger *slog.Logger) (*dataset.Dataset, error) {
	ds, err := dataset.Types.New(qualifyDatasetType(spec.Type))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", spec.ID, err)
	}
	dataset.WithID(spec.ID)(ds)
	dataset.WithLabel(spec.Label)(ds)
	ds.SetLogger(logger)
	if settings.PackageName != "" {
		dataset.WithPackageName(settings.PackageName)(ds)
	}

	initial, err := spec.initialData()
	if err != nil {
		return nil, err
	}
	if spec.Source != "" {
		importer := opts.Importer
		if _, err := local.Import(spec.Source); err == nil {
			importer = local
		}
		if importer == nil {
			return nil, fmt.Errorf("dataset %s source %s: %w", spec.ID, spec.Source, dataset.ErrMissingImporter)
		}
		if initial, err = importer.Import(spec.Source); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", spec.ID, err)
		}
	}
	if initial != nil {
		if err := ds.Import(initial); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", spec.ID, err)
		}
	}
	if opts.Observer != nil {
		ds.SetObserver(opts.Observer(ds))
	}
	return ds, nil
}

// runTask applies one task to ds and returns how many undone steps it stripped.
func runTask(task TaskSpec, ds *dataset.Dataset, autoStrip bool) (int, error) {
	switch task.Kind {
	case KindUndo:
		return 0, ds.Undo()
	case KindRedo:
		return 0, ds.Redo()
	case string(dataset.TaskProcessing):
		step, err := newProcessingStep(task)
		if err != nil {
			return 0, err
		}
		_, err = ds.Process(step)
		if !errors.Is(err, dataset.ErrLeadingHistory) || !autoStrip {
			return 0, err
		}
		stripped := ds.HistoryLen() - ds.HistoryPointer() - 1
		ds.StripHistory()
		_, err = ds.Process(step)
		return stripped, err
	case string(dataset.TaskAnalysis):
		step, err := newAnalysisStep(task)
		if err != nil {
			return 0, err
		}
		_, err = ds.Analyse(step)
		return 0, err
	case string(dataset.TaskAnnotation):
		annotation, err := newAnnotation(task)
		if err != nil {
			return 0, err
		}
		_, err = ds.Annotate(annotation)
		return 0, err
	case string(dataset.TaskRepresentation):
		plotter, err := newPlotter(task)
		if err != nil {
			return 0, err
		}
		_, err = ds.Plot(plotter)
		return 0, err
	}
	return 0, fmt.Errorf("%w: unknown task kind %q", ErrInvalidRecipe, task.Kind)
}

func runMultiPlot(task TaskSpec, targets []*dataset.Dataset) (*dataset.MultiPlotRecord, error) {
	plotter, err := dataset.MultiPlotters.New(steps.Qualify(task.Type))
	if err != nil {
		return nil, err
	}
	applyPlotAttrs(plotter.PlotAttributes(), task)
	_, record, err := dataset.PlotMany(plotter, targets...)
	return record, err
}

// #endregion run

// #region operations

func newProcessingStep(task TaskSpec) (dataset.ProcessingStep, error) {
	step, err := dataset.ProcessingSteps.New(steps.Qualify(task.Type))
	if err != nil {
		return nil, err
	}
	attrs := step.ProcessingAttributes()
	attrs.Parameters = overlay(attrs.Parameters, task.Parameters)
	if task.Comment != "" {
		attrs.Comment = task.Comment
	}
	return step, nil
}

func newAnalysisStep(task TaskSpec) (dataset.AnalysisStep, error) {
	step, err := dataset.AnalysisSteps.New(steps.Qualify(task.Type))
	if err != nil {
		return nil, err
	}
	attrs := step.AnalysisAttributes()
	attrs.Parameters = overlay(attrs.Parameters, task.Parameters)
	if task.Comment != "" {
		attrs.Comment = task.Comment
	}
	return step, nil
}

func newAnnotation(task TaskSpec) (dataset.Annotation, error) {
	annotation, err := dataset.Annotations.New(steps.Qualify(task.Type))
	if err != nil {
		return nil, err
	}
	attrs := annotation.AnnotationAttributes()
	attrs.Content = overlay(attrs.Content, task.Content)
	if task.Comment != "" {
		attrs.Content = overlay(attrs.Content, map[string]any{"comment": task.Comment})
	}
	if task.Scope != "" {
		attrs.Scope = task.Scope
	}
	return annotation, nil
}

func newPlotter(task TaskSpec) (dataset.Plotter, error) {
	plotter, err := dataset.Plotters.New(steps.Qualify(task.Type))
	if err != nil {
		return nil, err
	}
	applyPlotAttrs(plotter.PlotAttributes(), task)
	return plotter, nil
}

func applyPlotAttrs(attrs *dataset.PlotAttrs, task TaskSpec) {
	attrs.Parameters = overlay(attrs.Parameters, task.Parameters)
	attrs.Properties = overlay(attrs.Properties, task.Properties)
	if task.Label != "" {
		attrs.Label = task.Label
	}
	if task.Comment != "" {
		attrs.Comment = task.Comment
	}
}

// overlay returns base with the entries of top set over it. Nil results stay
// nil so operations without content keep reporting it as missing.
func overlay(base, top map[string]any) map[string]any {
	if len(top) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// #endregion operations

// #region summary

// Summarize computes aggregate stats from run results.
func Summarize(results []Result) Summary {
	s := Summary{TotalTasks: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionApplied:
			s.Applied++
			switch r.Kind {
			case KindUndo:
				s.Undos++
			case KindRedo:
				s.Redos++
			}
		case ActionFailed:
			s.Failed++
		}
		if r.Stripped > 0 {
			s.Strips++
		}
	}
	return s
}

// #endregion summary
