package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/logging"
	"github.com/danielpatrickdp/reprolab/internal/recipe"
)

// #region run
func newRunCmd(a *app) *cobra.Command {
	var (
		autoStrip   bool
		stopOnError bool
		dryRun      bool
		metricsOut  string
	)
	cmd := &cobra.Command{
		Use:   "run <recipe>",
		Short: "Run a recipe and save the resulting datasets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recipe.LoadRecipe(args[0])
			if err != nil {
				return err
			}
			if r.Settings.PackageName == "" {
				r.Settings.PackageName = a.cfg.PackageName
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if !dryRun {
				sources, err := r.Sources()
				if err != nil {
					return err
				}
				for id, d := range sources {
					if err := st.SaveSource(id, d); err != nil {
						return err
					}
				}
			}

			journals := make(map[string]*logging.Journal)
			opts := recipe.Options{
				Importer:    st,
				Logger:      a.logger,
				AutoStrip:   autoStrip,
				StopOnError: stopOnError,
				Observer: func(ds *dataset.Dataset) dataset.Observer {
					if dryRun {
						return a.metrics
					}
					j := logging.NewJournal(st.DB(), ds)
					journals[ds.ID()] = j
					return dataset.Observers(j, a.metrics)
				},
				OnStrip: func(ds *dataset.Dataset, dropped int) {
					if j, ok := journals[ds.ID()]; ok {
						j.Strip(dropped)
					}
				},
			}
			out, runErr := recipe.Run(cmd.Context(), r, opts)
			if out == nil {
				return runErr
			}

			if !dryRun {
				for _, ds := range out.Datasets {
					if err := st.Save(ds); err != nil {
						return errors.Join(runErr, err)
					}
				}
				for id, j := range journals {
					if err := j.Err(); err != nil {
						a.logger.Warn("provenance write failed", "dataset", id, "error", err)
					}
				}
			}
			if metricsOut != "" {
				if err := prometheus.WriteToTextfile(metricsOut, a.registry); err != nil {
					return errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
				}
			}

			if a.jsonOut {
				if err := printJSON(cmd.OutOrStdout(), runReport(out)); err != nil {
					return err
				}
			} else {
				printRunTable(cmd.OutOrStdout(), out)
			}
			return runErr
		},
	}
	f := cmd.Flags()
	f.BoolVar(&autoStrip, "autostrip", false, "discard undone steps when a processing task meets them")
	f.BoolVar(&stopOnError, "stop-on-error", false, "stop at the first failed task")
	f.BoolVar(&dryRun, "dry-run", false, "run without saving datasets")
	f.StringVar(&metricsOut, "metrics-out", "", "write run metrics to this file in text exposition format")
	return cmd
}

// #endregion run

// #region output
type resultRow struct {
	Task     int    `json:"task"`
	Kind     string `json:"kind"`
	Type     string `json:"type,omitempty"`
	Dataset  string `json:"dataset,omitempty"`
	Action   string `json:"action"`
	Stripped int    `json:"stripped,omitempty"`
	Error    string `json:"error,omitempty"`
}

type datasetRow struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	HistoryLength  int       `json:"history_length"`
	HistoryPointer int       `json:"history_pointer"`
	Values         []float64 `json:"values"`
}

type runOutput struct {
	Results  []resultRow    `json:"results"`
	Datasets []datasetRow   `json:"datasets"`
	Summary  recipe.Summary `json:"summary"`
}

func runReport(out *recipe.Outcome) runOutput {
	report := runOutput{Summary: recipe.Summarize(out.Results)}
	for _, r := range out.Results {
		row := resultRow{Task: r.Index, Kind: r.Kind, Type: r.Type, Dataset: r.DatasetID, Action: r.Action, Stripped: r.Stripped}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		report.Results = append(report.Results, row)
	}
	for _, ds := range out.Datasets {
		report.Datasets = append(report.Datasets, datasetRow{
			ID:             ds.ID(),
			Type:           ds.TypeName(),
			HistoryLength:  ds.HistoryLen(),
			HistoryPointer: ds.HistoryPointer(),
			Values:         ds.Data().Values,
		})
	}
	return report
}

func printRunTable(w io.Writer, out *recipe.Outcome) {
	report := runReport(out)
	fmt.Fprintf(w, "%-4s  %-14s  %-22s  %-12s  %-8s  %s\n", "Task", "Kind", "Type", "Dataset", "Action", "Detail")
	fmt.Fprintf(w, "%-4s+-%-14s+-%-22s+-%-12s+-%-8s+-%s\n", "----", "--------------", "----------------------", "------------", "--------", "----------")
	for _, r := range report.Results {
		detail := r.Error
		if r.Stripped > 0 {
			detail = fmt.Sprintf("stripped %d", r.Stripped)
		}
		fmt.Fprintf(w, "%-4d  %-14s  %-22s  %-12s  %-8s  %s\n", r.Task, r.Kind, r.Type, r.Dataset, r.Action, detail)
	}
	s := report.Summary
	fmt.Fprintf(w, "\n%d tasks: %d applied, %d failed, %d undo, %d redo, %d strips\n",
		s.TotalTasks, s.Applied, s.Failed, s.Undos, s.Redos, s.Strips)
}

// #endregion output
