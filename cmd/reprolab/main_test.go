package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers
type workspace struct {
	dir    string
	recipe string
	config string
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

// newWorkspace changes into a temp dir holding a config that points every
// path and address at it.
func newWorkspace(t *testing.T) workspace {
	t.Helper()
	recipe, err := filepath.Abs("testdata/recipe.yaml")
	require.NoError(t, err)
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := fmt.Sprintf("db: %s\ngrpc_addr: %s\nmetrics_addr: %s\nlog_level: error\narchive:\n  driver: fs\n  dir: %s\n",
		filepath.Join(dir, "test.db"), freeAddr(t), freeAddr(t), filepath.Join(dir, "archive"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return workspace{dir: dir, recipe: recipe, config: path}
}

func (w workspace) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", w.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (w workspace) detail(t *testing.T, id string, extra ...string) detailOutput {
	t.Helper()
	out, err := w.exec(t, append([]string{"inspect", id, "--json"}, extra...)...)
	require.NoError(t, err)
	var d detailOutput
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	return d
}

// #endregion helpers

func TestRun_SavesDatasets(t *testing.T) {
	w := newWorkspace(t)
	out, err := w.exec(t, "run", w.recipe)
	require.NoError(t, err)
	assert.Contains(t, out, "3 tasks: 3 applied, 0 failed")

	d := w.detail(t, "spectrum", "--provenance")
	assert.Equal(t, []float64{3, 5, 7, 9}, d.Values)
	assert.Equal(t, 1, d.Pointer)
	require.Len(t, d.History, 2)
	assert.Equal(t, "current", d.History[1].State)
	assert.Equal(t, 1, d.Annotations)
	assert.Len(t, d.Provenance, 3)

	list, err := w.exec(t, "inspect")
	require.NoError(t, err)
	assert.Contains(t, list, "spectrum")
}

func TestRun_DryRunSavesNothing(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.exec(t, "run", w.recipe, "--dry-run")
	require.NoError(t, err)
	out, err := w.exec(t, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "no datasets found")
}

func TestRun_MetricsOut(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(w.dir, "run.prom")
	_, err := w.exec(t, "run", w.recipe, "--metrics-out", path)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `reprolab_tasks_total{kind="processing"} 2`)
}

func TestRun_SourceFromStore(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.exec(t, "run", w.recipe)
	require.NoError(t, err)

	second := filepath.Join(w.dir, "copy.yaml")
	require.NoError(t, os.WriteFile(second, []byte(`datasets:
  - {id: copy, source: spectrum}
tasks:
  - {kind: processing, type: Scaling, parameters: {factor: 3}}
`), 0o644))
	out, err := w.exec(t, "run", second)
	require.NoError(t, err)
	assert.Contains(t, out, "1 tasks: 1 applied, 0 failed")
	assert.Equal(t, []float64{3, 6, 9, 12}, w.detail(t, "copy").Values)
}

func TestVerifyAndDelete(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.exec(t, "run", w.recipe)
	require.NoError(t, err)

	out, err := w.exec(t, "verify", "spectrum", "--save-as", "rebuilt", "--json")
	require.NoError(t, err)
	var v verifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.True(t, v.Reproduced)
	assert.Equal(t, 2, v.Steps)
	assert.Equal(t, []float64{3, 5, 7, 9}, v.Rebuilt)

	rebuilt := w.detail(t, "rebuilt")
	assert.Equal(t, []float64{3, 5, 7, 9}, rebuilt.Values)
	assert.Equal(t, -1, rebuilt.Pointer)

	out, err = w.exec(t, "delete", "spectrum")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted spectrum")
	_, err = w.exec(t, "inspect", "spectrum")
	assert.Error(t, err)
	_, err = w.exec(t, "delete", "spectrum")
	assert.Error(t, err)
	_, err = w.exec(t, "verify", "spectrum")
	assert.Error(t, err)
}

func TestUndoRedo_Local(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.exec(t, "run", w.recipe)
	require.NoError(t, err)

	out, err := w.exec(t, "undo", "spectrum")
	require.NoError(t, err)
	assert.Contains(t, out, "pointer 0 of 2")
	assert.Equal(t, []float64{2, 4, 6, 8}, w.detail(t, "spectrum").Values)

	_, err = w.exec(t, "redo", "spectrum")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5, 7, 9}, w.detail(t, "spectrum").Values)

	_, err = w.exec(t, "redo", "spectrum")
	assert.Error(t, err, "already at latest change")
	_, err = w.exec(t, "undo", "missing")
	assert.Error(t, err)
}

func TestExportImport(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.exec(t, "run", w.recipe)
	require.NoError(t, err)
	_, err = w.exec(t, "undo", "spectrum")
	require.NoError(t, err)

	out, err := w.exec(t, "export", "spectrum", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "datasets/spectrum.yaml")
	assert.FileExists(t, filepath.Join(w.dir, "archive", "datasets", "spectrum.yaml"))

	_, err = w.exec(t, "import", "datasets/spectrum.yaml")
	assert.Error(t, err, "existing dataset needs --force")

	_, err = w.exec(t, "import", "datasets/spectrum.yaml", "--force", "--db", filepath.Join(w.dir, "other.db"))
	require.NoError(t, err)
	_, err = w.exec(t, "redo", "spectrum", "--db", filepath.Join(w.dir, "other.db"))
	require.NoError(t, err, "undone step survives the archive")

	list, err := w.exec(t, "import")
	require.NoError(t, err)
	assert.Contains(t, list, "datasets/spectrum.yaml")

	_, err = w.exec(t, "export", "spectrum", "--format", "xml")
	assert.Error(t, err)
}

func TestServe_RemoteUndo(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.exec(t, "run", w.recipe)
	require.NoError(t, err)

	a := &app{configPath: w.config}
	require.NoError(t, a.setup(newRootCmd(), nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var out string
	require.Eventually(t, func() bool {
		out, err = w.exec(t, "undo", "spectrum", "--remote", a.cfg.GRPCAddr)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, out, "pointer 0 of 2")
	assert.Equal(t, []float64{2, 4, 6, 8}, w.detail(t, "spectrum").Values)

	resp, err := http.Get("http://" + a.cfg.MetricsAddr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "reprolab_undo_total 1")
}
