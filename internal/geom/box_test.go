package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Box helpers
// ---------------------------------------------------------------------------

func TestBoxDimensions(t *testing.T) {
	t.Parallel()

	b := Box{X1: 10, Y1: 20, X2: 30, Y2: 60}
	assert.InDelta(t, 20, b.Width(), 1e-9)
	assert.InDelta(t, 40, b.Height(), 1e-9)
	assert.InDelta(t, 800, b.Area(), 1e-9)
	assert.False(t, b.Empty())

	cx, cy := b.Center()
	assert.InDelta(t, 20, cx, 1e-9)
	assert.InDelta(t, 40, cy, 1e-9)
}

func TestBoxDegenerate(t *testing.T) {
	t.Parallel()

	t.Run("zero width", func(t *testing.T) {
		t.Parallel()
		b := Box{X1: 5, Y1: 0, X2: 5, Y2: 10}
		assert.True(t, b.Empty())
		assert.Zero(t, b.Area())
	})

	t.Run("inverted", func(t *testing.T) {
		t.Parallel()
		b := Box{X1: 10, Y1: 10, X2: 0, Y2: 0}
		assert.True(t, b.Empty())
		assert.Zero(t, b.Area())
	})
}

func TestBoxFinite(t *testing.T) {
	t.Parallel()

	assert.True(t, Box{X1: 0, Y1: 0, X2: 1, Y2: 1}.Finite())
	assert.False(t, Box{X1: math.NaN(), Y1: 0, X2: 1, Y2: 1}.Finite())
	assert.False(t, Box{X1: 0, Y1: 0, X2: math.Inf(1), Y2: 1}.Finite())
	assert.False(t, Box{X1: 0, Y1: math.Inf(-1), X2: 1, Y2: 1}.Finite())
}

// ---------------------------------------------------------------------------
// IoU
// ---------------------------------------------------------------------------

func TestIoUIdentical(t *testing.T) {
	t.Parallel()

	b := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.InDelta(t, 1.0, IoU(b, b), 1e-9)
}

func TestIoUDisjoint(t *testing.T) {
	t.Parallel()

	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Box{X1: 20, Y1: 20, X2: 30, Y2: 30}
	assert.Zero(t, IoU(a, b))
	assert.Zero(t, IoU(b, a))
}

func TestIoUTouchingEdges(t *testing.T) {
	t.Parallel()

	// Shared edge has zero-area intersection.
	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Box{X1: 10, Y1: 0, X2: 20, Y2: 10}
	assert.Zero(t, IoU(a, b))
}

func TestIoUPartialOverlap(t *testing.T) {
	t.Parallel()

	// 10x10 boxes offset by 5 in x: intersection 50, union 150.
	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := Box{X1: 5, Y1: 0, X2: 15, Y2: 10}
	assert.InDelta(t, 50.0/150.0, IoU(a, b), 1e-9)
}

func TestIoUContainment(t *testing.T) {
	t.Parallel()

	// Inner box 5x5 inside outer 10x10: IoU = 25/100.
	outer := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	inner := Box{X1: 2, Y1: 2, X2: 7, Y2: 7}
	assert.InDelta(t, 0.25, IoU(outer, inner), 1e-9)
	assert.InDelta(t, 0.25, IoU(inner, outer), 1e-9)
}

func TestIoUDegenerateInputs(t *testing.T) {
	t.Parallel()

	good := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	line := Box{X1: 0, Y1: 0, X2: 0, Y2: 10}
	assert.Zero(t, IoU(good, line))
	assert.Zero(t, IoU(line, line))
}

func TestIoUSymmetry(t *testing.T) {
	t.Parallel()

	a := Box{X1: 1, Y1: 2, X2: 8, Y2: 9}
	b := Box{X1: 4, Y1: 0, X2: 12, Y2: 6}
	assert.InDelta(t, IoU(a, b), IoU(b, a), 1e-12)
}

func TestIoURange(t *testing.T) {
	t.Parallel()

	cases := []struct{ a, b Box }{
		{Box{0, 0, 10, 10}, Box{3, 3, 12, 12}},
		{Box{0, 0, 1, 1}, Box{0.5, 0.5, 1.5, 1.5}},
		{Box{-5, -5, 5, 5}, Box{0, 0, 10, 10}},
	}
	for _, tc := range cases {
		v := IoU(tc.a, tc.b)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

// ---------------------------------------------------------------------------
// IoUMatrix
// ---------------------------------------------------------------------------

func TestIoUMatrix(t *testing.T) {
	t.Parallel()

	rows := []Box{{0, 0, 10, 10}, {20, 20, 30, 30}}
	cols := []Box{{0, 0, 10, 10}, {5, 0, 15, 10}, {100, 100, 110, 110}}

	m := IoUMatrix(rows, cols)
	require.Len(t, m, 2)
	require.Len(t, m[0], 3)

	assert.InDelta(t, 1.0, m[0][0], 1e-9)
	assert.InDelta(t, 50.0/150.0, m[0][1], 1e-9)
	assert.Zero(t, m[0][2])
	assert.Zero(t, m[1][0])
}

func TestIoUMatrixEmpty(t *testing.T) {
	t.Parallel()

	m := IoUMatrix(nil, []Box{{0, 0, 1, 1}})
	assert.Empty(t, m)

	m = IoUMatrix([]Box{{0, 0, 1, 1}}, nil)
	require.Len(t, m, 1)
	assert.Empty(t, m[0])
}
