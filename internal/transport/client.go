package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/dict"
	"github.com/danielpatrickdp/reprolab/internal/store"
)

// #region types
// State is the history position of a dataset after a mutation.
type State struct {
	ID             string
	HistoryPointer int
	HistoryLength  int
	// Stripped counts undone steps discarded by an autostrip Process.
	Stripped int
	// Annotations is set by Annotate.
	Annotations int
}

// ProcessRequest names a registered processing step to apply.
type ProcessRequest struct {
	DatasetID  string
	Type       string
	Parameters map[string]any
	Comment    string
	AutoStrip  bool
}

// AnnotateRequest describes an annotation. Type defaults to Comment.
type AnnotateRequest struct {
	DatasetID string
	Type      string
	Content   map[string]any
	Comment   string
	Scope     string
}

// #endregion types

// #region client-struct
// HistoryClient wraps a connection to a history server.
type HistoryClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewHistoryClient connects to the history server at addr.
func NewHistoryClient(addr string) (*HistoryClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &HistoryClient{conn: conn, cc: conn}, nil
}

// NewHistoryClientWithConn creates a client over an existing connection. Close
// leaves cc open.
func NewHistoryClientWithConn(cc grpc.ClientConnInterface) *HistoryClient {
	return &HistoryClient{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *HistoryClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
// GetDataset fetches the full dataset, history included.
func (c *HistoryClient) GetDataset(ctx context.Context, id string) (*dataset.Dataset, error) {
	out, err := c.call(ctx, MethodGetDataset, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get dataset rpc: %w", err)
	}
	doc, err := structToDocument(out)
	if err != nil {
		return nil, err
	}
	return dataset.FromDocument(doc)
}

// ListHistory returns the processing history of a dataset.
func (c *HistoryClient) ListHistory(ctx context.Context, id string) ([]store.HistoryEntry, error) {
	out, err := c.call(ctx, MethodListHistory, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("list history rpc: %w", err)
	}
	doc := dict.FromMap(out.AsMap())
	docs := doc.Dicts("entries")
	entries := make([]store.HistoryEntry, len(docs))
	for i, e := range docs {
		pos, _ := e.Int("position")
		created, _ := e.Time("created_at")
		entries[i] = store.HistoryEntry{
			Position:  pos,
			ClassName: e.String("class_name"),
			Undoable:  e.Bool("undoable"),
			CreatedAt: created,
			Current:   e.Bool("current"),
			Undone:    e.Bool("undone"),
		}
	}
	return entries, nil
}

// Process applies a processing step on the server.
func (c *HistoryClient) Process(ctx context.Context, req ProcessRequest) (State, error) {
	in := map[string]any{"id": req.DatasetID, "type": req.Type, "autostrip": req.AutoStrip}
	if len(req.Parameters) > 0 {
		in["parameters"] = req.Parameters
	}
	if req.Comment != "" {
		in["comment"] = req.Comment
	}
	out, err := c.call(ctx, MethodProcess, in)
	if err != nil {
		return State{}, fmt.Errorf("process rpc: %w", err)
	}
	return stateFrom(out), nil
}

// Undo steps the dataset back by one processing step.
func (c *HistoryClient) Undo(ctx context.Context, id string) (State, error) {
	out, err := c.call(ctx, MethodUndo, map[string]any{"id": id})
	if err != nil {
		return State{}, fmt.Errorf("undo rpc: %w", err)
	}
	return stateFrom(out), nil
}

// Redo re-applies the next undone step.
func (c *HistoryClient) Redo(ctx context.Context, id string) (State, error) {
	out, err := c.call(ctx, MethodRedo, map[string]any{"id": id})
	if err != nil {
		return State{}, fmt.Errorf("redo rpc: %w", err)
	}
	return stateFrom(out), nil
}

// Annotate attaches an annotation on the server.
func (c *HistoryClient) Annotate(ctx context.Context, req AnnotateRequest) (State, error) {
	in := map[string]any{"id": req.DatasetID}
	for k, v := range map[string]string{"type": req.Type, "comment": req.Comment, "scope": req.Scope} {
		if v != "" {
			in[k] = v
		}
	}
	if len(req.Content) > 0 {
		in["content"] = req.Content
	}
	out, err := c.call(ctx, MethodAnnotate, in)
	if err != nil {
		return State{}, fmt.Errorf("annotate rpc: %w", err)
	}
	return stateFrom(out), nil
}

func (c *HistoryClient) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func stateFrom(st *structpb.Struct) State {
	f := st.GetFields()
	return State{
		ID:             f["id"].GetStringValue(),
		HistoryPointer: int(f["history_pointer"].GetNumberValue()),
		HistoryLength:  int(f["history_length"].GetNumberValue()),
		Stripped:       int(f["stripped"].GetNumberValue()),
		Annotations:    int(f["annotations"].GetNumberValue()),
	}
}

// #endregion calls
