// Package data holds the numeric payload of a dataset together with its axes.
package data

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/reprolab/internal/dict"
)

// ErrAxesMismatch is returned when the axis count is not dimensions + 1.
var ErrAxesMismatch = errors.New("axes count must equal dimensions + 1")

// #region types
// Axis describes one dimension of the data, or the values themselves for the last axis.
type Axis struct {
	Quantity string
	Unit     string
	Label    string
	Values   []float64
}

// Data is a dense row-major array with one axis per dimension plus one for the values.
type Data struct {
	Values []float64
	Shape  []int
	Axes   []Axis
}

// #endregion types

// #region constructor
// New creates data of the given shape with index-valued axes. A nil shape means 1-D.
func New(values []float64, shape ...int) (*Data, error) {
	if len(shape) == 0 {
		shape = []int{len(values)}
	}
	if size(shape) != len(values) {
		return nil, fmt.Errorf("shape %v does not hold %d values", shape, len(values))
	}
	d := &Data{
		Values: append([]float64(nil), values...),
		Shape:  append([]int(nil), shape...),
	}
	d.Axes = make([]Axis, len(shape)+1)
	for i, n := range shape {
		d.Axes[i] = Axis{Values: indexAxis(n)}
	}
	return d, nil
}

// MustNew is New for literals in tests and fixtures.
func MustNew(values []float64, shape ...int) *Data {
	d, err := New(values, shape...)
	if err != nil {
		panic(err)
	}
	return d
}

func indexAxis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// #endregion constructor

// #region invariants
// Dims returns the number of dimensions.
func (d *Data) Dims() int { return len(d.Shape) }

// Validate checks the axes invariant and that the values fill the shape.
func (d *Data) Validate() error {
	if d == nil {
		return errors.New("nil data")
	}
	if len(d.Axes) != len(d.Shape)+1 {
		return fmt.Errorf("%d axes for %d dimensions: %w", len(d.Axes), len(d.Shape), ErrAxesMismatch)
	}
	if size(d.Shape) != len(d.Values) {
		return fmt.Errorf("shape %v does not hold %d values", d.Shape, len(d.Values))
	}
	for i, n := range d.Shape {
		if v := d.Axes[i].Values; v != nil && len(v) != n {
			return fmt.Errorf("axis %d has %d values, dimension has %d", i, len(v), n)
		}
	}
	return nil
}

// SetValues replaces the values and shape, resizing index axes to match.
func (d *Data) SetValues(values []float64, shape ...int) error {
	if len(shape) == 0 {
		shape = []int{len(values)}
	}
	if size(shape) != len(values) {
		return fmt.Errorf("shape %v does not hold %d values", shape, len(values))
	}
	if len(shape) != len(d.Shape) {
		last := Axis{}
		if len(d.Axes) > 0 {
			last = d.Axes[len(d.Axes)-1]
		}
		d.Axes = make([]Axis, len(shape)+1)
		d.Axes[len(shape)] = last
	}
	for i, n := range shape {
		if len(d.Axes[i].Values) != n {
			d.Axes[i].Values = indexAxis(n)
		}
	}
	d.Values = values
	d.Shape = append([]int(nil), shape...)
	return nil
}

// #endregion invariants

// #region copy-compare
// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := &Data{
		Values: append([]float64(nil), d.Values...),
		Shape:  append([]int(nil), d.Shape...),
		Axes:   make([]Axis, len(d.Axes)),
	}
	for i, a := range d.Axes {
		a.Values = append([]float64(nil), a.Values...)
		out.Axes[i] = a
	}
	return out
}

// CloneValue satisfies dict.Cloner.
func (d *Data) CloneValue() any { return d.Clone() }

// Equal reports bit-for-bit equality of values, shape and axes.
func (d *Data) Equal(o *Data) bool {
	if d == nil || o == nil {
		return d == o
	}
	if !intsEqual(d.Shape, o.Shape) || !floatsEqual(d.Values, o.Values) || len(d.Axes) != len(o.Axes) {
		return false
	}
	for i := range d.Axes {
		a, b := d.Axes[i], o.Axes[i]
		if a.Quantity != b.Quantity || a.Unit != b.Unit || a.Label != b.Label || !floatsEqual(a.Values, b.Values) {
			return false
		}
	}
	return true
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}

// #endregion copy-compare

// #region dict
// ToDict exports values, shape and axes.
func (d *Data) ToDict() *dict.Dict {
	axes := make([]any, len(d.Axes))
	for i, a := range d.Axes {
		axes[i] = dict.New().
			Set("quantity", a.Quantity).
			Set("unit", a.Unit).
			Set("label", a.Label).
			Set("values", append([]float64(nil), a.Values...))
	}
	return dict.New().
		Set("values", append([]float64(nil), d.Values...)).
		Set("shape", append([]int(nil), d.Shape...)).
		Set("axes", axes)
}

// FromDict sets the fields present in doc.
func (d *Data) FromDict(doc *dict.Dict) error {
	if doc == nil {
		return nil
	}
	if doc.Has("values") {
		d.Values = doc.Floats("values")
	}
	if doc.Has("shape") {
		d.Shape = doc.Ints("shape")
	}
	if doc.Has("axes") {
		axes := doc.Dicts("axes")
		d.Axes = make([]Axis, len(axes))
		for i, a := range axes {
			d.Axes[i] = Axis{
				Quantity: a.String("quantity"),
				Unit:     a.String("unit"),
				Label:    a.String("label"),
				Values:   a.Floats("values"),
			}
		}
	}
	return nil
}

// #endregion dict
