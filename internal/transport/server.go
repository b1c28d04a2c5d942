package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/dict"
	"github.com/danielpatrickdp/reprolab/internal/logging"
	"github.com/danielpatrickdp/reprolab/internal/registry"
	"github.com/danielpatrickdp/reprolab/internal/steps"
	"github.com/danielpatrickdp/reprolab/internal/store"
)

// #region server
// Server serves dataset histories kept in a store. Every mutation is journaled
// to the store's provenance log and saved before the call returns.
type Server struct {
	store   *store.Store
	metrics dataset.Observer
	logger  *slog.Logger

	// mu serializes load-mutate-save cycles.
	mu sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics adds an observer, usually a metrics collector, to every dataset
// the server mutates.
func WithMetrics(o dataset.Observer) ServerOption {
	return func(s *Server) { s.metrics = o }
}

// WithLogger sets the server and dataset logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a history server backed by st.
func NewServer(st *store.Store, opts ...ServerOption) *Server {
	s := &Server{store: st, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ HistoryServer = (*Server)(nil)

// #endregion server

// #region reads
func (s *Server) GetDataset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req)
	if err != nil {
		return nil, err
	}
	ds, err := s.store.Load(id)
	if err != nil {
		return nil, statusFor(err)
	}
	return documentToStruct(ds.ToDict())
}

func (s *Server) ListHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListHistory(id)
	if err != nil {
		return nil, statusFor(err)
	}
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = map[string]any{
			"position":   e.Position,
			"class_name": e.ClassName,
			"undoable":   e.Undoable,
			"created_at": dict.FormatTime(e.CreatedAt),
			"current":    e.Current,
			"undone":     e.Undone,
		}
	}
	return structpb.NewStruct(map[string]any{"id": id, "entries": list})
}

// #endregion reads

// #region mutations
// Process applies a registered processing step. Request fields: id, type,
// parameters, comment and autostrip.
func (s *Server) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req)
	if err != nil {
		return nil, err
	}
	fields := req.AsMap()
	typeName, _ := fields["type"].(string)
	step, err := dataset.ProcessingSteps.New(steps.Qualify(typeName))
	if err != nil {
		return nil, statusFor(err)
	}
	attrs := step.ProcessingAttributes()
	if params, ok := fields["parameters"].(map[string]any); ok {
		attrs.Parameters = mergeParams(attrs.Parameters, params)
	}
	if comment, ok := fields["comment"].(string); ok && comment != "" {
		attrs.Comment = comment
	}
	autoStrip, _ := fields["autostrip"].(bool)

	stripped := 0
	ds, err := s.mutate(ctx, id, func(ds *dataset.Dataset, journal *logging.Journal) error {
		if autoStrip && ds.HasLeadingHistory() {
			stripped = ds.HistoryLen() - ds.HistoryPointer() - 1
			ds.StripHistory()
		}
		if _, err := ds.Process(step); err != nil {
			return err
		}
		if stripped > 0 {
			journal.Strip(stripped)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stateStruct(ds, map[string]any{"stripped": stripped})
}

func (s *Server) Undo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req)
	if err != nil {
		return nil, err
	}
	ds, err := s.mutate(ctx, id, func(ds *dataset.Dataset, _ *logging.Journal) error { return ds.Undo() })
	if err != nil {
		return nil, err
	}
	return stateStruct(ds, nil)
}

func (s *Server) Redo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req)
	if err != nil {
		return nil, err
	}
	ds, err := s.mutate(ctx, id, func(ds *dataset.Dataset, _ *logging.Journal) error { return ds.Redo() })
	if err != nil {
		return nil, err
	}
	return stateStruct(ds, nil)
}

// Annotate attaches an annotation. The type defaults to Comment; a "comment"
// field is shorthand for its content.
func (s *Server) Annotate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireID(req)
	if err != nil {
		return nil, err
	}
	fields := req.AsMap()
	typeName, _ := fields["type"].(string)
	if typeName == "" {
		typeName = "Comment"
	}
	annotation, err := dataset.Annotations.New(steps.Qualify(typeName))
	if err != nil {
		return nil, statusFor(err)
	}
	attrs := annotation.AnnotationAttributes()
	if content, ok := fields["content"].(map[string]any); ok {
		attrs.Content = mergeParams(attrs.Content, content)
	}
	if comment, ok := fields["comment"].(string); ok && comment != "" {
		attrs.Content = mergeParams(attrs.Content, map[string]any{"comment": comment})
	}
	if scope, ok := fields["scope"].(string); ok && scope != "" {
		attrs.Scope = scope
	}

	ds, err := s.mutate(ctx, id, func(ds *dataset.Dataset, _ *logging.Journal) error {
		_, err := ds.Annotate(annotation)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stateStruct(ds, map[string]any{"annotations": len(ds.Annotations())})
}

// mutate loads id, runs fn with a journal installed and saves the result.
func (s *Server) mutate(ctx context.Context, id string, fn func(*dataset.Dataset, *logging.Journal) error) (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	ds, err := s.store.Load(id)
	if err != nil {
		return nil, statusFor(err)
	}
	journal := logging.NewJournal(s.store.DB(), ds)
	ds.SetObserver(dataset.Observers(journal, s.metrics))
	ds.SetLogger(s.logger.With("dataset", id))

	if err := fn(ds, journal); err != nil {
		s.logger.Info("request refused", "dataset", id, "error", err)
		return nil, statusFor(err)
	}
	if err := s.store.Save(ds); err != nil {
		return nil, status.Errorf(codes.Internal, "save %s: %v", id, err)
	}
	if err := journal.Err(); err != nil {
		s.logger.Warn("provenance write failed", "dataset", id, "error", err)
	}
	return ds, nil
}

// #endregion mutations

// #region conversion
func requireID(req *structpb.Struct) (string, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "id required")
	}
	return id, nil
}

// statusFor maps domain errors onto gRPC codes.
func statusFor(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, registry.ErrUnresolvableType),
		errors.Is(err, dataset.ErrMissingContent),
		errors.Is(err, dataset.ErrNotApplicable):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, dataset.ErrLeadingHistory),
		errors.Is(err, dataset.ErrEmptyHistory),
		errors.Is(err, dataset.ErrHistoryBeginning),
		errors.Is(err, dataset.ErrUndoStep),
		errors.Is(err, dataset.ErrLatestChange):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func stateStruct(ds *dataset.Dataset, extra map[string]any) (*structpb.Struct, error) {
	m := map[string]any{
		"id":              ds.ID(),
		"history_pointer": ds.HistoryPointer(),
		"history_length":  ds.HistoryLen(),
	}
	for k, v := range extra {
		m[k] = v
	}
	return structpb.NewStruct(m)
}

// mergeParams returns base with top laid over it.
func mergeParams(base, top map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// documentToStruct carries a dataset document over the wire. Key order is
// not preserved; documents are decoded by key.
func documentToStruct(doc *dict.Dict) (*structpb.Struct, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode document: %v", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, status.Errorf(codes.Internal, "encode document: %v", err)
	}
	return st, nil
}

func structToDocument(st *structpb.Struct) (*dict.Dict, error) {
	b, err := protojson.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc := dict.New()
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// #endregion conversion
