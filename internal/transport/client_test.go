package transport

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/logging"
	"github.com/danielpatrickdp/reprolab/internal/metrics"
	"github.com/danielpatrickdp/reprolab/internal/steps"
	"github.com/danielpatrickdp/reprolab/internal/store"
)

// #region harness
type harness struct {
	store   *store.Store
	client  *HistoryClient
	metrics *metrics.Collector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"), 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	collector := metrics.NewCollector(prometheus.NewRegistry())
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterHistoryServer(srv, NewServer(st, WithMetrics(collector)))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ds := dataset.New(dataset.WithID("spectrum"), dataset.WithData(data.MustNew([]float64{1, 2, 3})))
	if err := st.Save(ds); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return &harness{store: st, client: NewHistoryClientWithConn(conn), metrics: collector}
}

func codeOf(err error) codes.Code {
	// client errors wrap the status
	for err != nil {
		if s, ok := status.FromError(err); ok {
			return s.Code()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return codes.Unknown
}

// #endregion harness

// #region constructor-tests
func TestNewHistoryClient(t *testing.T) {
	client, err := NewHistoryClient("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestNewHistoryClientWithConn_CloseLeavesConn(t *testing.T) {
	c := NewHistoryClientWithConn(nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// #endregion constructor-tests

// #region history-tests
func TestProcessUndoRedo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: "Scaling", Parameters: map[string]any{"factor": 2.0}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.HistoryPointer != 0 || st.HistoryLength != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	if _, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: "Offset", Parameters: map[string]any{"offset": 1.0}, Comment: "baseline"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	st, err = h.client.Undo(ctx, "spectrum")
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if st.HistoryPointer != 0 || st.HistoryLength != 2 {
		t.Fatalf("unexpected state after undo %+v", st)
	}
	ds, err := h.client.GetDataset(ctx, "spectrum")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if want := []float64{2, 4, 6}; !ds.Data().Equal(data.MustNew(want)) {
		t.Fatalf("expected %v after undo, got %v", want, ds.Data().Values)
	}

	if st, err = h.client.Redo(ctx, "spectrum"); err != nil || st.HistoryPointer != 1 {
		t.Fatalf("Redo: %+v %v", st, err)
	}
	ds, err = h.client.GetDataset(ctx, "spectrum")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if want := []float64{3, 5, 7}; !ds.Data().Equal(data.MustNew(want)) {
		t.Fatalf("expected %v after redo, got %v", want, ds.Data().Values)
	}
	if got := ds.History()[1].Processing.Comment; got != "baseline" {
		t.Fatalf("comment lost: %q", got)
	}

	if got := testutil.ToFloat64(h.metrics.UndoTotal); got != 1 {
		t.Fatalf("expected 1 undo counted, got %v", got)
	}
	entries, err := logging.ListTasks(h.store.DB(), "spectrum")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 provenance rows, got %d", len(entries))
	}
}

func TestProcess_LeadingHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, typ := range []string{"Scaling", "Scaling"} {
		if _, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: typ}); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if _, err := h.client.Undo(ctx, "spectrum"); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	_, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: "Offset"})
	if codeOf(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}

	st, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: "Offset", AutoStrip: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if st.Stripped != 1 || st.HistoryLength != 2 || st.HistoryPointer != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	entries, err := logging.ListTasks(h.store.DB(), "spectrum")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if last := entries[len(entries)-1]; last.Action != logging.ActionStrip {
		t.Fatalf("expected strip to be journaled last, got %s", last.Action)
	}
}

func TestListHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for range 2 {
		if _, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: "Scaling"}); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if _, err := h.client.Undo(ctx, "spectrum"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	entries, err := h.client.ListHistory(ctx, "spectrum")
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Current || !entries[1].Undone {
		t.Fatalf("unexpected flags %+v", entries)
	}
	if entries[0].ClassName != steps.Qualify("Scaling") || entries[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestAnnotate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	st, err := h.client.Annotate(ctx, AnnotateRequest{DatasetID: "spectrum", Comment: "peak looks off"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if st.Annotations != 1 {
		t.Fatalf("expected 1 annotation, got %d", st.Annotations)
	}

	_, err = h.client.Annotate(ctx, AnnotateRequest{DatasetID: "spectrum"})
	if codeOf(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for empty comment, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.client.Undo(ctx, "missing"); codeOf(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := h.client.Undo(ctx, "spectrum"); codeOf(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition on empty history, got %v", err)
	}
	if _, err := h.client.Process(ctx, ProcessRequest{DatasetID: "spectrum", Type: "Teleport"}); codeOf(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if _, err := h.client.GetDataset(ctx, ""); codeOf(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for empty id, got %v", err)
	}
}

// #endregion history-tests
