package tracker

import "fmt"

// ValidationError describes a single malformed detection. The engine drops
// the offending detection, counts it, and keeps processing the frame; it is
// never returned from Step, only surfaced through the dropped counters.
type ValidationError struct {
	Index  int    // position within the submitted frame
	Reason string // human-readable cause
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid detection at index %d: %s", e.Index, e.Reason)
}

// SequenceError reports a Step call whose frame index does not advance the
// engine's cursor. The call is rejected without mutating any state.
type SequenceError struct {
	Got  int64
	Last int64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("frame index %d does not advance past %d", e.Got, e.Last)
}

// ConfigError reports a rejected configuration. The previous configuration
// stays in effect.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Reason)
}
