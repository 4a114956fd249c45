// Package geom provides axis-aligned bounding box primitives shared by the
// tracking engine and its persistence and reporting layers.
package geom

import "math"

// Box is an axis-aligned bounding box in pixel coordinates. X1,Y1 is the
// top-left corner and X2,Y2 the bottom-right corner; a well-formed box has
// X1 < X2 and Y1 < Y2.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box. Negative for inverted boxes.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box. Negative for inverted boxes.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, or 0 when the box is empty or inverted.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box has no positive area.
func (b Box) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

// Finite reports whether all four coordinates are finite numbers.
func (b Box) Finite() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Center returns the box center point.
func (b Box) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IoU returns the intersection-over-union of two boxes in [0, 1]. Disjoint
// or degenerate (zero-area) inputs score 0; identical well-formed boxes
// score 1. The union area is guarded so division never sees zero.
func IoU(a, b Box) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)
	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// IoUMatrix computes the pairwise IoU of every box in rows against every box
// in cols. The result has len(rows) rows and len(cols) columns.
func IoUMatrix(rows, cols []Box) [][]float64 {
	m := make([][]float64, len(rows))
	for i, r := range rows {
		m[i] = make([]float64, len(cols))
		for j, c := range cols {
			m[i][j] = IoU(r, c)
		}
	}
	return m
}
