package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/steps"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector(reg), reg
}

func TestCollector_CountsDatasetEvents(t *testing.T) {
	c, reg := newTestCollector(t)
	ds := dataset.New(dataset.WithData(data.MustNew([]float64{1, 2, 3})), dataset.WithObserver(c))

	_, err := ds.Process(steps.NewScaling(2))
	require.NoError(t, err)
	_, err = ds.Process(steps.NewOffset(1))
	require.NoError(t, err)
	_, err = ds.Analyse(steps.NewBasicCharacteristics())
	require.NoError(t, err)
	require.NoError(t, ds.Undo())
	require.NoError(t, ds.Undo())
	require.NoError(t, ds.Redo())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.TasksTotal.WithLabelValues("processing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TasksTotal.WithLabelValues("analysis")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.UndoTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RedoTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "reprolab_replayed_steps" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples, "one observation per undo")
}

func TestCollector_ReconstructionFailures(t *testing.T) {
	c, _ := newTestCollector(t)
	c.ReconstructionFailed(dataset.TaskRepresentation, "example.com/gone.Plotter")
	c.ReconstructionFailed(dataset.TaskRepresentation, "example.com/gone.Plotter")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ReconstructionFailures.WithLabelValues("representation")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	c, reg := newTestCollector(t)
	c.Undone()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "reprolab_undo_total 1"), string(body))
}
