package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/reprolab/internal/config"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// Format is the serialization of an archived dataset document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const datasetsPrefix = "datasets/"

// #region open
// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFilesystem, "":
		return NewFSStore(cfg.Dir)
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.UsePathStyle,
		})
	}
	return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
}
// #endregion open

// #region documents

// DatasetKey is the key under which a dataset document is archived.
func DatasetKey(id string, format Format) string {
	return datasetsPrefix + id + "." + string(format)
}

// Export writes the full document of ds, history included.
func Export(ctx context.Context, store Store, ds *dataset.Dataset, format Format) (Info, error) {
	if ds == nil {
		return Info{}, dataset.ErrMissingDataset
	}
	b, contentType, err := Encode(ds.ToDict(), format)
	if err != nil {
		return Info{}, fmt.Errorf("export %s: %w", ds.ID(), err)
	}
	info, err := store.Put(ctx, DatasetKey(ds.ID(), format), bytes.NewReader(b), PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"dataset-type":    ds.TypeName(),
			"history-length":  fmt.Sprint(ds.HistoryLen()),
			"history-pointer": fmt.Sprint(ds.HistoryPointer()),
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("export %s: %w", ds.ID(), err)
	}
	return info, nil
}

// Import reads the dataset document stored under key. The format follows the
// key's extension.
func Import(ctx context.Context, store Store, key string) (*dataset.Dataset, error) {
	format, err := FormatOf(key)
	if err != nil {
		return nil, err
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	doc, err := Decode(b, format)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", key, err)
	}
	ds, err := dataset.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", key, err)
	}
	return ds, nil
}

// ListDatasets returns the archived dataset documents.
func ListDatasets(ctx context.Context, store Store) ([]Info, error) {
	return store.List(ctx, datasetsPrefix)
}

// FormatOf maps a key or file name extension to a Format.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown document format for %q", name)
}

// Encode serializes doc and returns the content type to store it with.
func Encode(doc *dict.Dict, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(doc, "", "  ")
		return b, "application/json", err
	case FormatYAML:
		b, err := yaml.Marshal(doc)
		return b, "application/yaml", err
	}
	return nil, "", fmt.Errorf("unknown format %q", format)
}

// Decode parses a document in the given format.
func Decode(b []byte, format Format) (*dict.Dict, error) {
	doc := dict.New()
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(b, doc)
	case FormatYAML:
		err = yaml.Unmarshal(b, doc)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// #endregion documents
