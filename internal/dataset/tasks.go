package dataset

import (
	"fmt"

	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// #region task-kinds
// TaskKind discriminates the entries of a dataset's task log.
type TaskKind string

const (
	TaskProcessing     TaskKind = "processing"
	TaskAnalysis       TaskKind = "analysis"
	TaskAnnotation     TaskKind = "annotation"
	TaskRepresentation TaskKind = "representation"
)

// Valid reports whether k is one of the four known kinds.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskProcessing, TaskAnalysis, TaskAnnotation, TaskRepresentation:
		return true
	}
	return false
}

// #endregion task-kinds

// #region task
// TaskRecord is implemented by the four history record kinds.
type TaskRecord interface {
	dict.Dicter
	taskKind() TaskKind
}

// Task is one entry of the chronological task log.
type Task struct {
	Kind   TaskKind
	Record TaskRecord
}

func newTask(record TaskRecord) Task {
	return Task{Kind: record.taskKind(), Record: record}
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	switch r := t.Record.(type) {
	case *ProcessingHistoryRecord:
		return Task{Kind: t.Kind, Record: r.Clone()}
	case *AnalysisHistoryRecord:
		return Task{Kind: t.Kind, Record: r.Clone()}
	case *AnnotationHistoryRecord:
		return Task{Kind: t.Kind, Record: r.Clone()}
	case *PlotHistoryRecord:
		return Task{Kind: t.Kind, Record: r.Clone()}
	}
	return t
}

// ToDict exports the task as {"kind", "task"}.
func (t Task) ToDict() *dict.Dict {
	d := dict.New().Set("kind", string(t.Kind))
	if t.Record != nil {
		d.Set("task", t.Record.ToDict())
	}
	return d
}

// TaskFromDict decodes a task, selecting the record type by its kind.
func TaskFromDict(d *dict.Dict) (Task, error) {
	if d == nil {
		return Task{}, fmt.Errorf("decode task: empty document")
	}
	kind := TaskKind(d.String("kind"))
	var record interface {
		TaskRecord
		dict.FromDicter
	}
	switch kind {
	case TaskProcessing:
		record = &ProcessingHistoryRecord{}
	case TaskAnalysis:
		record = &AnalysisHistoryRecord{}
	case TaskAnnotation:
		record = &AnnotationHistoryRecord{}
	case TaskRepresentation:
		record = &PlotHistoryRecord{}
	default:
		return Task{}, fmt.Errorf("decode task: unknown kind %q", kind)
	}
	if err := record.FromDict(d.Dict("task")); err != nil {
		return Task{}, fmt.Errorf("decode %s task: %w", kind, err)
	}
	return Task{Kind: kind, Record: record}, nil
}

// ClassName returns the operation type recorded by the task.
func (t Task) ClassName() string {
	switch r := t.Record.(type) {
	case *ProcessingHistoryRecord:
		return r.className()
	case *AnalysisHistoryRecord:
		if r.Analysis != nil {
			return r.Analysis.ClassName
		}
	case *AnnotationHistoryRecord:
		if r.Annotation != nil {
			return r.Annotation.ClassName
		}
	case *PlotHistoryRecord:
		if r.Plot != nil {
			return r.Plot.ClassName
		}
	}
	return ""
}

// #endregion task
