// Package recipe runs declarative sequences of dataset tasks. A recipe names
// the datasets it works on and the ordered tasks applied to them; running it
// again reproduces the same histories.
package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
)

// Task kinds understood by the runner besides the dataset task kinds.
const (
	KindMultiPlot = "multiplot"
	KindUndo      = "undo"
	KindRedo      = "redo"
)

// ErrInvalidRecipe wraps every structural problem found while loading.
var ErrInvalidRecipe = errors.New("invalid recipe")

// #region recipe-types

// Recipe is the top-level YAML structure.
type Recipe struct {
	Description string        `yaml:"description,omitempty"`
	Settings    Settings      `yaml:"settings"`
	Datasets    []DatasetSpec `yaml:"datasets" validate:"required,min=1,dive"`
	Tasks       []TaskSpec    `yaml:"tasks,omitempty" validate:"dive"`
}

// Settings tune how a recipe runs.
type Settings struct {
	// AutoStrip discards undone steps when a processing task meets them.
	AutoStrip   bool   `yaml:"autostrip"`
	PackageName string `yaml:"package_name,omitempty"`
}

// DatasetSpec declares one dataset. Values are used as initial data unless
// Source names data to import.
type DatasetSpec struct {
	ID     string    `yaml:"id" validate:"required"`
	Label  string    `yaml:"label,omitempty"`
	Type   string    `yaml:"type,omitempty"`
	Values []float64 `yaml:"values,omitempty"`
	Shape  []int     `yaml:"shape,omitempty" validate:"omitempty,dive,min=0"`
	Source string    `yaml:"source,omitempty"`
}

// TaskSpec is one entry of the task list. Type is a registered operation
// name; bare names resolve to the built-in steps.
type TaskSpec struct {
	Kind       string         `yaml:"kind" validate:"required,oneof=processing analysis annotation representation multiplot undo redo"`
	Type       string         `yaml:"type,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Content    map[string]any `yaml:"content,omitempty"`
	Scope      string         `yaml:"scope,omitempty"`
	Comment    string         `yaml:"comment,omitempty"`
	Label      string         `yaml:"label,omitempty"`
	// ApplyTo lists dataset ids; empty means every dataset in the recipe.
	ApplyTo []string `yaml:"apply_to,omitempty"`
}

// #endregion recipe-types

// #region loader

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadRecipe reads and validates a YAML (or JSON) recipe file.
func LoadRecipe(path string) (*Recipe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", path, err)
	}
	r, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a recipe. Unknown keys are rejected.
func Parse(b []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks field constraints and that every apply_to id is declared.
func (r *Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
	}
	ids := make(map[string]bool, len(r.Datasets))
	for _, d := range r.Datasets {
		if ids[d.ID] {
			return fmt.Errorf("%w: duplicate dataset %s", ErrInvalidRecipe, d.ID)
		}
		ids[d.ID] = true
	}
	for i, t := range r.Tasks {
		if t.Type == "" && t.Kind != KindUndo && t.Kind != KindRedo {
			return fmt.Errorf("%w: task %d (%s) has no type", ErrInvalidRecipe, i, t.Kind)
		}
		for _, id := range t.ApplyTo {
			if !ids[id] {
				return fmt.Errorf("%w: task %d applies to unknown dataset %s", ErrInvalidRecipe, i, id)
			}
		}
	}
	return nil
}

// Marshal encodes the recipe as YAML.
func (r *Recipe) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode recipe: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode recipe: %w", err)
	}
	return buf.Bytes(), nil
}

// #endregion loader

// #region conversion

// qualifyDatasetType expands bare dataset type names such as
// "ExperimentalDataset" to their registered names.
func qualifyDatasetType(name string) string {
	if name == "" {
		return dataset.TypeDataset
	}
	if strings.Contains(name, ".") {
		return name
	}
	return strings.TrimSuffix(dataset.TypeDataset, "Dataset") + name
}

// initialData returns the declared values, or nil when none are declared.
func (d *DatasetSpec) initialData() (*data.Data, error) {
	if d.Values == nil {
		return nil, nil
	}
	v, err := data.New(d.Values, d.Shape...)
	if err != nil {
		return nil, fmt.Errorf("dataset %s values: %w", d.ID, err)
	}
	return v, nil
}

// Sources returns the initial data of every dataset that declares values,
// keyed by dataset id. Datasets later in the recipe may name these ids as
// their source.
func (r *Recipe) Sources() (map[string]*data.Data, error) {
	out := make(map[string]*data.Data)
	for i := range r.Datasets {
		d, err := r.Datasets[i].initialData()
		if err != nil {
			return nil, err
		}
		if d != nil {
			out[r.Datasets[i].ID] = d
		}
	}
	return out, nil
}

// #endregion conversion
