package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reprolab/internal/archive"
	"github.com/danielpatrickdp/reprolab/internal/store"
)

// #region export
func newExportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <dataset-id>",
		Short: "Write a stored dataset, history included, to the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := archive.Format(format)
			if f != archive.FormatJSON && f != archive.FormatYAML {
				return fmt.Errorf("unknown format %q", format)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			ds, err := st.Load(args[0])
			if err != nil {
				return err
			}
			arch, err := archive.Open(cmd.Context(), a.cfg.Archive)
			if err != nil {
				return err
			}
			info, err := archive.Export(cmd.Context(), arch, ds, f)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s (%d bytes, %s)\n", ds.ID(), info.Key, info.Size, arch.Driver())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(archive.FormatJSON), "document format: json or yaml")
	return cmd
}

// #endregion export

// #region import
func newImportCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import [key]",
		Short: "Load an archived dataset into the store, or list the archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := archive.Open(cmd.Context(), a.cfg.Archive)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				infos, err := archive.ListDatasets(cmd.Context(), arch)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return printJSON(cmd.OutOrStdout(), infos)
				}
				for _, info := range infos {
					fmt.Fprintf(cmd.OutOrStdout(), "%-40s  %8d  %s\n", info.Key, info.Size, info.LastModified.Format("2006-01-02T15:04:05Z"))
				}
				return nil
			}

			ds, err := archive.Import(cmd.Context(), arch, args[0])
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if !force {
				if _, err := st.Load(ds.ID()); err == nil {
					return fmt.Errorf("dataset %s already stored; use --force to replace it", ds.ID())
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
			if err := st.Save(ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d steps, pointer %d)\n", ds.ID(), ds.HistoryLen(), ds.HistoryPointer())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace a stored dataset with the same id")
	return cmd
}

// #endregion import
