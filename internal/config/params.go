package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultParamsPath is the path to the canonical tracking defaults file.
// This is the single source of truth for all default parameter values.
const DefaultParamsPath = "config/tracking.defaults.json"

// TrackingParams is the root configuration for the tracking engine. The
// schema matches the per-camera tracking/config endpoint so the same JSON
// works for startup configuration, stored per-camera overrides, and runtime
// updates. Nil fields mean "use the default", which keeps partial documents
// safe to apply.
type TrackingParams struct {
	// TrackThresh splits detections into the confident set that may spawn
	// and claim tracks and the low set used only to sustain existing ones.
	TrackThresh *float64 `json:"track_thresh,omitempty"`

	// TrackBuffer is how many consecutive unmatched frames a track survives.
	TrackBuffer *int `json:"track_buffer,omitempty"`

	// MatchThresh is the minimum IoU for a detection-track pairing.
	MatchThresh *float64 `json:"match_thresh,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrackingParams returns a TrackingParams with all fields set to nil.
// Use LoadTrackingParams to load actual values from a defaults file.
func EmptyTrackingParams() *TrackingParams {
	return &TrackingParams{}
}

// DefaultTrackingParams returns a fully populated parameter set carrying the
// stock values.
func DefaultTrackingParams() *TrackingParams {
	return &TrackingParams{
		TrackThresh: ptrFloat64(0.5),
		TrackBuffer: ptrInt(30),
		MatchThresh: ptrFloat64(0.8),
	}
}

// LoadTrackingParams loads a TrackingParams from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTrackingParams(path string) (*TrackingParams, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackingParams()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ParseTrackingParams decodes and validates a JSON document, typically a
// request body. Unknown fields are rejected so typos in parameter names
// surface as errors instead of silently applying defaults.
func ParseTrackingParams(data []byte) (*TrackingParams, error) {
	cfg := EmptyTrackingParams()
	if err := strictUnmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse params JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Validate checks that the configuration values are valid.
func (p *TrackingParams) Validate() error {
	if p.TrackThresh != nil {
		if *p.TrackThresh < 0 || *p.TrackThresh > 1 {
			return fmt.Errorf("track_thresh must be between 0 and 1, got %f", *p.TrackThresh)
		}
	}
	if p.MatchThresh != nil {
		if *p.MatchThresh < 0 || *p.MatchThresh > 1 {
			return fmt.Errorf("match_thresh must be between 0 and 1, got %f", *p.MatchThresh)
		}
	}
	if p.TrackBuffer != nil {
		if *p.TrackBuffer < 0 {
			return fmt.Errorf("track_buffer must be non-negative, got %d", *p.TrackBuffer)
		}
	}
	return nil
}

// Merge returns a copy of p with any nil fields filled from other. It is
// how a stored per-camera override is layered on top of the defaults, and
// how a partial runtime update is layered on top of the current values.
func (p *TrackingParams) Merge(other *TrackingParams) *TrackingParams {
	out := &TrackingParams{}
	*out = *p
	if other == nil {
		return out
	}
	if out.TrackThresh == nil {
		out.TrackThresh = other.TrackThresh
	}
	if out.TrackBuffer == nil {
		out.TrackBuffer = other.TrackBuffer
	}
	if out.MatchThresh == nil {
		out.MatchThresh = other.MatchThresh
	}
	return out
}

// GetTrackThresh returns the track_thresh value or the default.
func (p *TrackingParams) GetTrackThresh() float64 {
	if p.TrackThresh == nil {
		return 0.5
	}
	return *p.TrackThresh
}

// GetTrackBuffer returns the track_buffer value or the default.
func (p *TrackingParams) GetTrackBuffer() int {
	if p.TrackBuffer == nil {
		return 30
	}
	return *p.TrackBuffer
}

// GetMatchThresh returns the match_thresh value or the default.
func (p *TrackingParams) GetMatchThresh() float64 {
	if p.MatchThresh == nil {
		return 0.8
	}
	return *p.MatchThresh
}
