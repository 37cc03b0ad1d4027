package dae

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatSourceTupleAccess(t *testing.T) {
	src, err := NewFloatSource("pos", []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, "X", "Y", "Z")
	require.NoError(t, err)

	assert.Equal(t, 4, src.TupleCount())
	assert.Equal(t, []float64{1, 1, 0}, src.Tuple(2))
	assert.Equal(t, 1.0, src.Vec3(1).X)

	// Tuples alias the backing array rather than copying it.
	src.Tuple(0)[0] = 9
	assert.Equal(t, 9.0, src.Data[0])
}

func TestFloatSourceLengthInvariant(t *testing.T) {
	_, err := NewFloatSource("bad", []float64{1, 2, 3, 4}, "X", "Y", "Z")
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformedSource, derr.Kind)
}

func TestFloatSourceScrubsNaN(t *testing.T) {
	src, err := NewFloatSource("pos", []float64{1, math.NaN(), 3}, "X", "Y", "Z")
	require.NoError(t, err)
	assert.Equal(t, 0.0, src.Data[1])
}

func TestNameSourceTuples(t *testing.T) {
	src, err := NewNameSource("joints", []string{"Root", "Spine", "Head"}, "JOINT")
	require.NoError(t, err)
	assert.Equal(t, 3, src.TupleCount())
	assert.Equal(t, []string{"Spine"}, src.Tuple(1))
}

func TestIDRefSourceLengthInvariant(t *testing.T) {
	_, err := NewIDRefSource("targets", []string{"a", "b", "c"}, "REF", "EXTRA")
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformedSource, derr.Kind)
}

func TestFloatSourceMat4RowMajor(t *testing.T) {
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64(i)
	}
	names := make([]string, 16)
	for i := range names {
		names[i] = "M"
	}
	src, err := NewFloatSource("mats", data, names...)
	require.NoError(t, err)

	m := src.Mat4(0)
	// Row-major element (0,3) is the X translation.
	assert.Equal(t, 3.0, m.Translation().X)
}
