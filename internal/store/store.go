package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	dataset_id    TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	label         TEXT,
	document      TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS history_records (
	dataset_id    TEXT NOT NULL,
	position      INTEGER NOT NULL,
	class_name    TEXT NOT NULL,
	undoable      INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	document      TEXT NOT NULL,
	PRIMARY KEY (dataset_id, position),
	FOREIGN KEY (dataset_id) REFERENCES datasets(dataset_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS history_pointer (
	dataset_id    TEXT PRIMARY KEY,
	pointer       INTEGER NOT NULL,
	FOREIGN KEY (dataset_id) REFERENCES datasets(dataset_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sources (
	dataset_id    TEXT PRIMARY KEY,
	shape         TEXT NOT NULL,
	axes          TEXT NOT NULL,
	vals          BLOB NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id    TEXT NOT NULL,
	action        TEXT NOT NULL,
	task_kind     TEXT,
	class_name    TEXT,
	pointer       INTEGER NOT NULL,
	detail_json   TEXT,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store persists datasets in SQLite. The processing history of each dataset
// is kept one row per record next to its pointer; everything else lives in
// the dataset document.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, *dataset.Dataset]
}

// DefaultCacheSize is the number of loaded datasets kept in memory.
const DefaultCacheSize = 128

// timeLayout is fixed width so updated_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. A cacheSize of zero
// or less uses DefaultCacheSize.
func NewStore(dbPath string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *dataset.Dataset](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, cache: cache}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.cache.Purge()
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region save
// Save writes ds, replacing its previous history rows and pointer atomically.
func (s *Store) Save(ds *dataset.Dataset) error {
	if ds == nil {
		return dataset.ErrMissingDataset
	}
	doc := ds.ToDict()
	history := doc.Dicts("history")
	doc.Delete("history")
	doc.Delete("history_pointer")

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal dataset %s: %w", ds.ID(), err)
	}
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO datasets (dataset_id, type, label, document, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dataset_id) DO UPDATE SET
		   type = excluded.type, label = excluded.label,
		   document = excluded.document, updated_at = excluded.updated_at`,
		ds.ID(), ds.TypeName(), nullIfEmpty(ds.Label()), string(docJSON), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM history_records WHERE dataset_id = ?`, ds.ID()); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for i, rec := range ds.History() {
		recJSON, err := json.Marshal(history[i])
		if err != nil {
			return fmt.Errorf("marshal history %d: %w", i, err)
		}
		_, err = tx.Exec(
			`INSERT INTO history_records (dataset_id, position, class_name, undoable, created_at, document)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ds.ID(), i, rec.Processing.ClassName, rec.Undoable(),
			dict.FormatTime(rec.Date()), string(recJSON),
		)
		if err != nil {
			return fmt.Errorf("insert history %d: %w", i, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO history_pointer (dataset_id, pointer) VALUES (?, ?)
		 ON CONFLICT(dataset_id) DO UPDATE SET pointer = excluded.pointer`,
		ds.ID(), ds.HistoryPointer(),
	)
	if err != nil {
		return fmt.Errorf("set pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.cache.Add(ds.ID(), ds.Clone())
	return nil
}
// #endregion save

// #region load
// Load returns the dataset stored under id. Callers get their own copy; the
// cached instance is never handed out.
func (s *Store) Load(id string) (*dataset.Dataset, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached.Clone(), nil
	}

	var docJSON string
	err := s.db.QueryRow(`SELECT document FROM datasets WHERE dataset_id = ?`, id).Scan(&docJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	var doc dict.Dict
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal dataset %s: %w", id, err)
	}

	history, err := s.historyDocuments(id)
	if err != nil {
		return nil, err
	}
	var pointer int
	err = s.db.QueryRow(`SELECT pointer FROM history_pointer WHERE dataset_id = ?`, id).Scan(&pointer)
	if errors.Is(err, sql.ErrNoRows) {
		pointer = len(history) - 1
	} else if err != nil {
		return nil, fmt.Errorf("get pointer %s: %w", id, err)
	}
	doc.Set("history", history).Set("history_pointer", pointer)

	ds, err := dataset.FromDocument(&doc)
	if err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", id, err)
	}
	s.cache.Add(id, ds.Clone())
	return ds, nil
}

func (s *Store) historyDocuments(id string) ([]any, error) {
	rows, err := s.db.Query(
		`SELECT document FROM history_records WHERE dataset_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", id, err)
	}
	defer rows.Close()

	history := []any{}
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		var rec dict.Dict
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
		history = append(history, &rec)
	}
	return history, rows.Err()
}
// #endregion load

// #region list-datasets
// ListDatasets returns the most recently updated datasets.
func (s *Store) ListDatasets(limit int) ([]DatasetSummary, error) {
	rows, err := s.db.Query(
		`SELECT d.dataset_id, d.type, d.label, d.updated_at,
		        (SELECT COUNT(*) FROM history_records h WHERE h.dataset_id = d.dataset_id),
		        COALESCE(p.pointer, -1)
		 FROM datasets d LEFT JOIN history_pointer p ON p.dataset_id = d.dataset_id
		 ORDER BY d.updated_at DESC, d.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetSummary
	for rows.Next() {
		var sum DatasetSummary
		var label sql.NullString
		var updatedStr string
		if err := rows.Scan(&sum.ID, &sum.Type, &label, &updatedStr, &sum.HistoryLen, &sum.HistoryPointer); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if label.Valid {
			sum.Label = label.String
		}
		if sum.UpdatedAt, err = time.Parse(timeLayout, updatedStr); err != nil {
			return nil, fmt.Errorf("scan row %s updated_at: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
// #endregion list-datasets

// #region list-history
// ListHistory returns the processing records of a dataset in order.
func (s *Store) ListHistory(id string) ([]HistoryEntry, error) {
	pointer := -1
	err := s.db.QueryRow(`SELECT pointer FROM history_pointer WHERE dataset_id = ?`, id).Scan(&pointer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pointer %s: %w", id, err)
	}

	rows, err := s.db.Query(
		`SELECT position, class_name, undoable, created_at
		 FROM history_records WHERE dataset_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", id, err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdStr string
		if err := rows.Scan(&e.Position, &e.ClassName, &e.Undoable, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if e.CreatedAt, err = dict.ParseTime(createdStr); err != nil {
			return nil, fmt.Errorf("scan row %d created_at: %w", e.Position, err)
		}
		e.Current = e.Position == pointer
		e.Undone = e.Position > pointer
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-history

// #region delete
// Delete removes a dataset with its history rows and pointer in one
// transaction. Its source data is kept.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM history_records WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("delete history %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM history_pointer WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("delete pointer %s: %w", id, err)
	}
	res, err := tx.Exec(`DELETE FROM datasets WHERE dataset_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.cache.Remove(id)
	if n == 0 {
		return fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return nil
}
// #endregion delete

// #region sources
// SaveSource stores the initial data of a dataset so references to it can be
// materialised later.
func (s *Store) SaveSource(id string, d *data.Data) error {
	if d == nil {
		return dataset.ErrMissingData
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("source %s: %w", id, err)
	}
	shapeJSON, err := json.Marshal(d.Shape)
	if err != nil {
		return fmt.Errorf("marshal shape: %w", err)
	}
	axesJSON, err := json.Marshal(d.Axes)
	if err != nil {
		return fmt.Errorf("marshal axes: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sources (dataset_id, shape, axes, vals, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dataset_id) DO UPDATE SET
		   shape = excluded.shape, axes = excluded.axes, vals = excluded.vals`,
		id, string(shapeJSON), string(axesJSON), encodeValues(d.Values),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save source %s: %w", id, err)
	}
	return nil
}

// Import returns the source data stored for id. It makes the store usable as
// a dataset.Importer.
func (s *Store) Import(id string) (*data.Data, error) {
	var shapeJSON, axesJSON string
	var blob []byte
	err := s.db.QueryRow(
		`SELECT shape, axes, vals FROM sources WHERE dataset_id = ?`, id,
	).Scan(&shapeJSON, &axesJSON, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	d := &data.Data{Values: decodeValues(blob)}
	if err := json.Unmarshal([]byte(shapeJSON), &d.Shape); err != nil {
		return nil, fmt.Errorf("unmarshal shape: %w", err)
	}
	if err := json.Unmarshal([]byte(axesJSON), &d.Axes); err != nil {
		return nil, fmt.Errorf("unmarshal axes: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", id, err)
	}
	return d, nil
}
// #endregion sources

// #region value-encoding
func encodeValues(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeValues(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
// #endregion value-encoding

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
