package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reprolab/internal/logging"
	"github.com/danielpatrickdp/reprolab/internal/store"
)

// #region inspect
func newInspectCmd(a *app) *cobra.Command {
	var (
		last       int
		provenance bool
	)
	cmd := &cobra.Command{
		Use:   "inspect [dataset-id]",
		Short: "List stored datasets, or show one dataset's history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if len(args) == 0 {
				return a.inspectList(cmd.OutOrStdout(), st, last)
			}
			return a.inspectDetail(cmd.OutOrStdout(), st, args[0], provenance)
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recently updated datasets")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "include the provenance log")
	return cmd
}

// #endregion inspect

// #region list-mode
type listRow struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Label          string `json:"label,omitempty"`
	HistoryLength  int    `json:"history_length"`
	HistoryPointer int    `json:"history_pointer"`
	UpdatedAt      string `json:"updated_at"`
}

func (a *app) inspectList(w io.Writer, st *store.Store, last int) error {
	summaries, err := st.ListDatasets(last)
	if err != nil {
		return err
	}
	rows := make([]listRow, len(summaries))
	for i, s := range summaries {
		rows[i] = listRow{
			ID:             s.ID,
			Type:           s.Type,
			Label:          s.Label,
			HistoryLength:  s.HistoryLen,
			HistoryPointer: s.HistoryPointer,
			UpdatedAt:      s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if a.jsonOut {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no datasets found")
		return nil
	}
	fmt.Fprintf(w, "%-16s  %-36s  %7s  %7s  %s\n", "Dataset", "Type", "Steps", "Pointer", "Updated")
	fmt.Fprintf(w, "%-16s+-%-36s+-%7s+-%7s+-%s\n", "----------------", "------------------------------------", "-------", "-------", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-16s  %-36s  %7d  %7d  %s\n", r.ID, r.Type, r.HistoryLength, r.HistoryPointer, r.UpdatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode
type historyRow struct {
	Position  int    `json:"position"`
	ClassName string `json:"class_name"`
	Undoable  bool   `json:"undoable"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

type provenanceRow struct {
	Action    string `json:"action"`
	TaskKind  string `json:"task_kind,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	Pointer   int    `json:"pointer"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type detailOutput struct {
	ID          string          `json:"id"`
	Label       string          `json:"label,omitempty"`
	Type        string          `json:"type"`
	Values      []float64       `json:"values"`
	Pointer     int             `json:"history_pointer"`
	History     []historyRow    `json:"history"`
	Analyses    int             `json:"analyses"`
	Annotations int             `json:"annotations"`
	Plots       int             `json:"representations"`
	Provenance  []provenanceRow `json:"provenance,omitempty"`
}

func (a *app) inspectDetail(w io.Writer, st *store.Store, id string, provenance bool) error {
	ds, err := st.Load(id)
	if err != nil {
		return err
	}
	entries, err := st.ListHistory(id)
	if err != nil {
		return err
	}
	out := detailOutput{
		ID:          ds.ID(),
		Label:       ds.Label(),
		Type:        ds.TypeName(),
		Values:      ds.Data().Values,
		Pointer:     ds.HistoryPointer(),
		Analyses:    len(ds.Analyses()),
		Annotations: len(ds.Annotations()),
		Plots:       len(ds.Representations()),
	}
	for _, e := range entries {
		state := "applied"
		switch {
		case e.Current:
			state = "current"
		case e.Undone:
			state = "undone"
		}
		out.History = append(out.History, historyRow{
			Position:  e.Position,
			ClassName: e.ClassName,
			Undoable:  e.Undoable,
			State:     state,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	if provenance {
		logged, err := logging.ListTasks(st.DB(), id)
		if err != nil {
			return err
		}
		for _, p := range logged {
			out.Provenance = append(out.Provenance, provenanceRow{
				Action:    p.Action,
				TaskKind:  p.TaskKind,
				ClassName: p.ClassName,
				Pointer:   p.Pointer,
				Detail:    p.DetailJSON,
				CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
			})
		}
	}

	if a.jsonOut {
		return printJSON(w, out)
	}
	fmt.Fprintf(w, "Dataset:    %s\n", out.ID)
	if out.Label != "" {
		fmt.Fprintf(w, "Label:      %s\n", out.Label)
	}
	fmt.Fprintf(w, "Type:       %s\n", out.Type)
	fmt.Fprintf(w, "Values:     %v\n", out.Values)
	fmt.Fprintf(w, "Pointer:    %d\n", out.Pointer)
	fmt.Fprintf(w, "Analyses:   %d  Annotations: %d  Plots: %d\n", out.Analyses, out.Annotations, out.Plots)

	fmt.Fprintf(w, "\nHistory:\n")
	if len(out.History) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, h := range out.History {
		undoable := "undoable"
		if !h.Undoable {
			undoable = "irreversible"
		}
		fmt.Fprintf(w, "  %3d  %-8s  %-12s  %s\n", h.Position, h.State, undoable, h.ClassName)
	}
	if provenance {
		fmt.Fprintf(w, "\nProvenance:\n")
		for _, p := range out.Provenance {
			fmt.Fprintf(w, "  %s  %-22s  %3d  %s %s\n", p.CreatedAt, p.Action, p.Pointer, p.ClassName, p.Detail)
		}
	}
	return nil
}

// #endregion detail-mode
