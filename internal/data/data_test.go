package data

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danielpatrickdp/reprolab/internal/dict"
)

func TestNew_DefaultAxes(t *testing.T) {
	d, err := New([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(d.Axes) != 3 {
		t.Fatalf("expected 3 axes, got %d", len(d.Axes))
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if d.Dims() != 2 {
		t.Errorf("expected 2 dims, got %d", d.Dims())
	}
}

func TestNew_ShapeMismatch(t *testing.T) {
	if _, err := New([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Fatal("expected error for mismatching shape")
	}
}

func TestValidate_AxesInvariant(t *testing.T) {
	d := MustNew([]float64{1, 2})
	d.Axes = d.Axes[:1]
	err := d.Validate()
	if !errors.Is(err, ErrAxesMismatch) {
		t.Fatalf("expected ErrAxesMismatch, got %v", err)
	}
}

func TestSetValues_ResizesAxes(t *testing.T) {
	d := MustNew([]float64{1, 2, 3, 4})
	d.Axes[1].Unit = "mV"
	if err := d.SetValues([]float64{1, 2}); err != nil {
		t.Fatalf("SetValues: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(d.Axes[0].Values) != 2 {
		t.Errorf("expected resized axis, got %v", d.Axes[0].Values)
	}
	if d.Axes[1].Unit != "mV" {
		t.Errorf("value axis should be kept, got %+v", d.Axes[1])
	}

	if err := d.SetValues([]float64{1, 2, 3, 4}, 2, 2); err != nil {
		t.Fatalf("SetValues 2D: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate 2D: %v", err)
	}
	if d.Axes[2].Unit != "mV" {
		t.Errorf("value axis should move to the end, got %+v", d.Axes)
	}
}

func TestCloneAndEqual(t *testing.T) {
	d := MustNew([]float64{1, 2, 3})
	cp := d.Clone()
	if !d.Equal(cp) {
		t.Fatal("clone should be equal")
	}
	cp.Values[0] = 42
	if d.Values[0] != 1 {
		t.Fatal("clone shares values")
	}
	if d.Equal(cp) {
		t.Fatal("modified clone should differ")
	}
	var nilData *Data
	if !nilData.Equal(nil) || d.Equal(nil) {
		t.Fatal("nil comparison")
	}
}

func TestDictRoundTripThroughJSON(t *testing.T) {
	d := MustNew([]float64{0.5, 1.5, 2.5, 3.5}, 2, 2)
	d.Axes[0].Quantity = "magnetic field"
	d.Axes[0].Unit = "mT"

	b, err := json.Marshal(d.ToDict())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc dict.Dict
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var back Data
	if err := back.FromDict(&doc); err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	if !d.Equal(&back) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", d, back)
	}
}
