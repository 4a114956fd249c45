package tracker

import "github.com/banshee-data/tracksight/internal/config"

// Config holds the engine parameters. A Config is replaced wholesale via
// Tracker.Reconfigure and is never mutated between frames, so every frame
// is processed under exactly one parameter set.
type Config struct {
	// TrackThresh splits detections into the high-confidence set (eligible
	// to match first and to spawn new tracks) and the low-confidence set
	// (recovery matching only).
	TrackThresh float64

	// TrackBuffer is the number of consecutive unmatched frames a track
	// survives. Once TimeSinceUpdate exceeds this value the track is removed.
	TrackBuffer int

	// MatchThresh is the minimum IoU for an assignment to count as a match.
	MatchThresh float64
}

// DefaultConfig returns the stock parameter set.
func DefaultConfig() Config {
	return Config{
		TrackThresh: 0.5,
		TrackBuffer: 30,
		MatchThresh: 0.8,
	}
}

// ConfigFromParams builds a Config from loaded TrackingParams. Use this in
// production code where the params document is already loaded and validated.
func ConfigFromParams(p *config.TrackingParams) Config {
	if p == nil {
		return DefaultConfig()
	}
	return Config{
		TrackThresh: p.GetTrackThresh(),
		TrackBuffer: p.GetTrackBuffer(),
		MatchThresh: p.GetMatchThresh(),
	}
}

// Validate checks parameter ranges: thresholds in [0, 1], buffer ≥ 0.
func (c Config) Validate() error {
	if c.TrackThresh < 0 || c.TrackThresh > 1 {
		return &ConfigError{Field: "track_thresh", Reason: "must be in [0, 1]"}
	}
	if c.MatchThresh < 0 || c.MatchThresh > 1 {
		return &ConfigError{Field: "match_thresh", Reason: "must be in [0, 1]"}
	}
	if c.TrackBuffer < 0 {
		return &ConfigError{Field: "track_buffer", Reason: "must be non-negative"}
	}
	return nil
}
