package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-task
// LogTask writes a provenance entry to the provenance_log table.
func LogTask(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (dataset_id, action, task_kind, class_name, pointer, detail_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.DatasetID,
		entry.Action,
		nullIfEmpty(entry.TaskKind),
		nullIfEmpty(entry.ClassName),
		entry.Pointer,
		nullIfEmpty(entry.DetailJSON),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log task: %w", err)
	}
	return nil
}
// #endregion log-task

// #region list-tasks
// ListTasks returns the provenance entries of a dataset in write order.
func ListTasks(db *sql.DB, datasetID string) ([]ProvenanceEntry, error) {
	rows, err := db.Query(
		`SELECT id, dataset_id, action, task_kind, class_name, pointer, detail_json, reason, created_at
		 FROM provenance_log WHERE dataset_id = ? ORDER BY id`, datasetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var kind, class, detail, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.DatasetID, &e.Action, &kind, &class, &e.Pointer, &detail, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.TaskKind = kind.String
		e.ClassName = class.String
		e.DetailJSON = detail.String
		e.Reason = reason.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("scan row %d created_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-tasks

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
