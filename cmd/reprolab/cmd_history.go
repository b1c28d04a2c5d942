package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/transport"
)

// #region undo-redo
func newUndoCmd(a *app) *cobra.Command {
	return historyCmd(a, "undo", "Step a stored dataset back by one processing step",
		(*dataset.Dataset).Undo, (*transport.HistoryClient).Undo)
}

func newRedoCmd(a *app) *cobra.Command {
	return historyCmd(a, "redo", "Re-apply the next undone processing step",
		(*dataset.Dataset).Redo, (*transport.HistoryClient).Redo)
}

type remoteMove func(*transport.HistoryClient, context.Context, string) (transport.State, error)

// historyCmd builds undo and redo. With --remote the move runs on a history
// server; otherwise the local store is changed directly.
func historyCmd(a *app, use, short string, local func(*dataset.Dataset) error, remote remoteMove) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   use + " <dataset-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var state transport.State
			if addr != "" {
				client, err := transport.NewHistoryClient(addr)
				if err != nil {
					return err
				}
				defer client.Close()
				if state, err = remote(client, cmd.Context(), id); err != nil {
					return err
				}
			} else {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				ds, err := st.Load(id)
				if err != nil {
					return err
				}
				journal := a.track(st, ds)
				if err := local(ds); err != nil {
					return fmt.Errorf("%s %s: %w", use, id, err)
				}
				if err := st.Save(ds); err != nil {
					return err
				}
				if err := journal.Err(); err != nil {
					a.logger.Warn("provenance write failed", "dataset", id, "error", err)
				}
				state = transport.State{ID: id, HistoryPointer: ds.HistoryPointer(), HistoryLength: ds.HistoryLen()}
			}

			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":              state.ID,
					"history_pointer": state.HistoryPointer,
					"history_length":  state.HistoryLength,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: pointer %d of %d\n", state.ID, state.HistoryPointer, state.HistoryLength)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "remote", "", "history server address; empty changes the local store")
	return cmd
}

// #endregion undo-redo
