package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

// #region verify
type verifyOutput struct {
	ID         string    `json:"id"`
	Steps      int       `json:"steps"`
	Reproduced bool      `json:"reproduced"`
	Stored     []float64 `json:"stored"`
	Rebuilt    []float64 `json:"rebuilt"`
	SavedAs    string    `json:"saved_as,omitempty"`
}

// newVerifyCmd rebuilds a dataset from its stored source and applied history
// and compares the result with the stored data.
func newVerifyCmd(a *app) *cobra.Command {
	var saveAs string
	cmd := &cobra.Command{
		Use:   "verify <dataset-id>",
		Short: "Rebuild a dataset from its source and history and compare",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ds, err := st.Load(args[0])
			if err != nil {
				return err
			}
			ref, err := dataset.NewDatasetReference(ds)
			if err != nil {
				return err
			}
			rebuilt, err := ref.ToDatasetFrom(st)
			if err != nil {
				return fmt.Errorf("rebuild %s: %w", ds.ID(), err)
			}

			out := verifyOutput{
				ID:         ds.ID(),
				Steps:      len(ref.History),
				Reproduced: rebuilt.Data().Equal(ds.Data()),
				Stored:     ds.Data().Values,
				Rebuilt:    rebuilt.Data().Values,
			}
			if saveAs != "" {
				dataset.WithID(saveAs)(rebuilt)
				dataset.WithLabel(ds.Label())(rebuilt)
				if err := st.Save(rebuilt); err != nil {
					return err
				}
				out.SavedAs = saveAs
			}

			if a.jsonOut {
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				state := "reproduced"
				if !out.Reproduced {
					state = "differs"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s after %d steps\n", out.ID, state, out.Steps)
				if out.SavedAs != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "saved rebuilt dataset as %s\n", out.SavedAs)
				}
			}
			if !out.Reproduced {
				return errors.New("rebuilt data differs from stored data")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&saveAs, "save-as", "", "store the rebuilt dataset under this id")
	return cmd
}

// #endregion verify

// #region delete
func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>",
		Short: "Delete a dataset and its history; its source data is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

// #endregion delete
