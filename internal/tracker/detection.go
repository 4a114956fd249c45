package tracker

import (
	"math"

	"github.com/banshee-data/tracksight/internal/geom"
)

// Detection is a single detector output for one frame: a pixel-space
// bounding box, a confidence score in [0, 1], and a class label. Detections
// are value types; the engine never mutates or retains them.
type Detection struct {
	Box   geom.Box `json:"box"`
	Score float64  `json:"score"`
	Class string   `json:"class"`
}

// validate reports why the detection at the given frame position is
// unusable, or nil if it is fine. A usable detection has a finite
// well-formed box and a score in [0, 1].
func (d Detection) validate(index int) *ValidationError {
	if !d.Box.Finite() {
		return &ValidationError{Index: index, Reason: "box has non-finite coordinates"}
	}
	if d.Box.X1 >= d.Box.X2 || d.Box.Y1 >= d.Box.Y2 {
		return &ValidationError{Index: index, Reason: "box is empty or inverted"}
	}
	if math.IsNaN(d.Score) || d.Score < 0 || d.Score > 1 {
		return &ValidationError{Index: index, Reason: "score outside [0, 1]"}
	}
	return nil
}
