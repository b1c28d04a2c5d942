package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/reprolab/internal/config"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/logging"
	"github.com/danielpatrickdp/reprolab/internal/metrics"
	"github.com/danielpatrickdp/reprolab/internal/store"

	// registers the built-in operations
	_ "github.com/danielpatrickdp/reprolab/internal/steps"
)

// #region app
// app carries what every command needs once flags and config are resolved.
type app struct {
	configPath string
	envFiles   []string
	dbPath     string
	jsonOut    bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath, a.envFiles...)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DB = a.dbPath
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewLogger("reprolab", cmd.ErrOrStderr(), level)
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewCollector(a.registry)
	return nil
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.NewStore(a.cfg.DB, a.cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", a.cfg.DB, err)
	}
	return st, nil
}

// track installs a provenance journal and the metrics collector on ds.
func (a *app) track(st *store.Store, ds *dataset.Dataset) *logging.Journal {
	journal := logging.NewJournal(st.DB(), ds)
	ds.SetObserver(dataset.Observers(journal, a.metrics))
	ds.SetLogger(a.logger.With("dataset", ds.ID()))
	return journal
}

// #endregion app

// #region root
func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "reprolab",
		Short:             "Reproducible dataset processing with undo and redo",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to config YAML")
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load (default .env if present)")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")
	flags.BoolVar(&a.jsonOut, "json", false, "output as JSON instead of table")

	root.AddCommand(
		newRunCmd(a),
		newInspectCmd(a),
		newUndoCmd(a),
		newRedoCmd(a),
		newVerifyCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newServeCmd(a),
	)
	return root
}

// #endregion root

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
