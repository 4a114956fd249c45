package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.InDelta(t, 0.5, cfg.TrackThresh, 1e-9)
	assert.Equal(t, 30, cfg.TrackBuffer)
	assert.InDelta(t, 0.8, cfg.MatchThresh, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateBoundaries(t *testing.T) {
	t.Parallel()

	// Threshold endpoints and a zero buffer are all legal.
	ok := Config{TrackThresh: 0, TrackBuffer: 0, MatchThresh: 1}
	assert.NoError(t, ok.Validate())

	ok = Config{TrackThresh: 1, TrackBuffer: 1000, MatchThresh: 0}
	assert.NoError(t, ok.Validate())
}

func TestConfigErrorNamesField(t *testing.T) {
	t.Parallel()

	err := Config{TrackThresh: 2, TrackBuffer: 30, MatchThresh: 0.8}.Validate()
	assert.ErrorContains(t, err, "track_thresh")

	err = Config{TrackThresh: 0.5, TrackBuffer: -5, MatchThresh: 0.8}.Validate()
	assert.ErrorContains(t, err, "track_buffer")

	err = Config{TrackThresh: 0.5, TrackBuffer: 30, MatchThresh: -0.2}.Validate()
	assert.ErrorContains(t, err, "match_thresh")
}
