package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shape interface{ Area() float64 }

type square struct{ side float64 }

func (s *square) Area() float64 { return s.side * s.side }

type named struct{}

func (named) Area() float64     { return 0 }
func (named) TypeName() string { return "custom.Named" }

func TestRegisterAndNew(t *testing.T) {
	r := New[shape]("shape")
	name, err := r.Register(func() shape { return &square{} })
	require.NoError(t, err)
	assert.Equal(t, "github.com/danielpatrickdp/reprolab/internal/registry.square", name)

	s, err := r.New(name)
	require.NoError(t, err)
	assert.IsType(t, &square{}, s)
	assert.True(t, r.Has(name))
	assert.Equal(t, []string{name}, r.Names())
}

func TestRegisterDuplicate(t *testing.T) {
	r := New[shape]("shape")
	r.MustRegister(func() shape { return &square{} })
	_, err := r.Register(func() shape { return &square{} })
	assert.Error(t, err)
}

func TestRegisterNilFactory(t *testing.T) {
	r := New[shape]("shape")
	_, err := r.Register(nil)
	assert.Error(t, err)
	assert.Error(t, r.RegisterName("", func() shape { return &square{} }))
}

func TestNewUnknown(t *testing.T) {
	r := New[shape]("shape")
	_, err := r.New("nowhere.Thing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvableType))
	assert.Contains(t, err.Error(), "nowhere.Thing")

	_, err = r.New("")
	assert.True(t, errors.Is(err, ErrUnresolvableType))
}

func TestUnregister(t *testing.T) {
	r := New[shape]("shape")
	name := r.MustRegister(func() shape { return &square{} })
	r.Unregister(name)
	_, err := r.New(name)
	assert.ErrorIs(t, err, ErrUnresolvableType)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "", TypeName(nil))
	assert.Equal(t, "custom.Named", TypeName(named{}))
	assert.Equal(t, "int", TypeName(3))
	assert.Equal(t, TypeName(square{}), TypeName(&square{}))
}
