package dae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterResolve(t *testing.T) {
	r := NewRegistry()
	g := &Geometry{ID: "box"}
	require.NoError(t, r.Register("box", g))

	got, err := r.Resolve("#box")
	require.NoError(t, err)
	assert.Same(t, g, got)

	got, err = r.Resolve("box")
	require.NoError(t, err)
	assert.Same(t, g, got)
}

func TestRegistryDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("box", &Geometry{ID: "box"}))

	err := r.Register("box", &Geometry{ID: "box"})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindDuplicateID, derr.Kind)
	assert.False(t, derr.Kind.Ignorable())
}

func TestRegistryResolveMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("#nothing")
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindBrokenRef, derr.Kind)
	assert.True(t, derr.Kind.Ignorable())
}

func TestRegistryForwardReference(t *testing.T) {
	r := NewRegistry()
	var bound any
	r.Defer("#late", func(e any) { bound = e })

	// The target appears after the reference was parked.
	g := &Geometry{ID: "late"}
	require.NoError(t, r.Register("late", g))

	broken := r.Flush()
	assert.Empty(t, broken)
	assert.Same(t, g, bound)
}

func TestRegistryFlushReportsBroken(t *testing.T) {
	r := NewRegistry()
	r.Defer("#ghost", func(any) { t.Fatal("bound a reference with no target") })
	r.Defer("#ghost", func(any) {})

	broken := r.Flush()
	assert.Equal(t, []string{"ghost", "ghost"}, broken)
}

func TestRegistryFlushChainedProgress(t *testing.T) {
	// Binding one deferred reference may register entities that satisfy
	// another; Flush keeps draining until no progress is made.
	r := NewRegistry()
	var outer any
	r.Defer("#inner", func(e any) { outer = e })
	r.Defer("#first", func(any) {
		_ = r.Register("inner", "inner-entity")
	})
	require.NoError(t, r.Register("first", "first-entity"))

	broken := r.Flush()
	assert.Empty(t, broken)
	assert.Equal(t, "inner-entity", outer)
}
