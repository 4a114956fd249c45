package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/geom"
	"github.com/banshee-data/tracksight/internal/timeutil"
	"github.com/banshee-data/tracksight/internal/tracker"
)

// ---------------------------------------------------------------------------
// mocks
// ---------------------------------------------------------------------------

type captureRecorder struct {
	mu     sync.Mutex
	frames []tracker.StepResult
	err    error
}

func (r *captureRecorder) RecordFrame(cameraID, runID string, res tracker.StepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, res)
	return nil
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type capturePublisher struct {
	mu     sync.Mutex
	frames []tracker.StepResult
}

func (p *capturePublisher) PublishFrame(cameraID, runID string, res tracker.StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, res)
}

func det(x1, y1, x2, y2, score float64) tracker.Detection {
	return tracker.Detection{Box: geom.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: "car"}
}

// ---------------------------------------------------------------------------
// session lifecycle
// ---------------------------------------------------------------------------

func TestStartIngestStop(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	m := NewManager(ManagerOptions{Recorder: rec, Clock: clock})

	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, s.RunID)

	res, err := s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
	require.NoError(t, err)
	require.Len(t, res.Active, 1)
	assert.Equal(t, int64(1), res.Frame)
	assert.Equal(t, int64(1), res.Active[0].ID)

	res, err = s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Frame)

	status := s.Status()
	assert.Equal(t, "cam-1", status.CameraID)
	assert.Equal(t, int64(2), status.Frames)
	assert.Equal(t, 1, status.Engine.TrackedCount)

	clock.Advance(3 * time.Second)
	summary, err := m.StopSession("cam-1")
	require.NoError(t, err)
	assert.Equal(t, s.RunID, summary.RunID)
	assert.Equal(t, int64(2), summary.Frames)
	assert.Equal(t, int64(1), summary.TracksCreated)
	assert.Equal(t, time.Unix(1000, 0), summary.StartedAt)
	assert.Equal(t, time.Unix(1003, 0), summary.EndedAt)

	// Stop flushes the persistence queue before returning.
	assert.Equal(t, 2, rec.count())
}

func TestStartSessionTwiceRejected(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	_, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)

	_, err = m.StartSession("cam-1", nil)
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestStopWithoutSession(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	_, err := m.StopSession("cam-none")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestIngestAfterStopRejected(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)
	_, err = m.StopSession("cam-1")
	require.NoError(t, err)

	_, err = s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
	assert.ErrorIs(t, err, ErrSessionStopped)
	assert.Empty(t, s.ActiveTracks())
}

func TestRestartBeginsFreshRun(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	s1, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s1.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9), det(50, 0, 60, 10, 0.9)})
		require.NoError(t, err)
	}
	_, err = m.StopSession("cam-1")
	require.NoError(t, err)

	s2, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)
	assert.NotEqual(t, s1.RunID, s2.RunID)

	// Identifiers restart from 1 in the new run.
	res, err := s2.IngestFrame([]tracker.Detection{det(200, 0, 210, 10, 0.9)})
	require.NoError(t, err)
	require.Len(t, res.Active, 1)
	assert.Equal(t, int64(1), res.Active[0].ID)
	assert.Equal(t, int64(1), res.Frame)
}

// ---------------------------------------------------------------------------
// configuration
// ---------------------------------------------------------------------------

func TestStartSessionUsesCameraOverrides(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	overrides := &config.TrackingParams{TrackBuffer: intPtr(2)}
	s, err := m.StartSession("cam-1", overrides)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Params().GetTrackBuffer())
	assert.Equal(t, 0.5, s.Params().GetTrackThresh()) // default fills the gap
}

func TestStartSessionRejectsInvalidOverrides(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	bad := &config.TrackingParams{MatchThresh: floatPtr(3)}
	_, err := m.StartSession("cam-1", bad)
	require.Error(t, err)

	// The failed start must not leave a half-registered session behind.
	_, ok := m.Get("cam-1")
	assert.False(t, ok)
}

func TestUpdateConfigTakesEffectNextFrame(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)

	_, err = s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
	require.NoError(t, err)

	// Loosen the gate; the offset detection now sustains track 1 instead of
	// spawning track 2.
	require.NoError(t, s.UpdateConfig(&config.TrackingParams{MatchThresh: floatPtr(0.1)}))

	res, err := s.IngestFrame([]tracker.Detection{det(5, 0, 15, 10, 0.9)})
	require.NoError(t, err)
	require.Len(t, res.Active, 1)
	assert.Equal(t, int64(1), res.Active[0].ID)

	// The untouched fields kept their prior values.
	assert.Equal(t, 30, s.Params().GetTrackBuffer())
}

func TestUpdateConfigInvalidKeepsPrior(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)

	err = s.UpdateConfig(&config.TrackingParams{TrackBuffer: intPtr(-4)})
	require.Error(t, err)
	assert.Equal(t, 30, s.Params().GetTrackBuffer())
}

// ---------------------------------------------------------------------------
// camera isolation
// ---------------------------------------------------------------------------

func TestSessionsRunIndependently(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	const cameras = 4
	const frames = 25

	var wg sync.WaitGroup
	errs := make(chan error, cameras)
	for c := 0; c < cameras; c++ {
		cameraID := fmt.Sprintf("cam-%d", c)
		s, err := m.StartSession(cameraID, nil)
		require.NoError(t, err)

		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for f := 0; f < frames; f++ {
				res, err := s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
				if err != nil {
					errs <- err
					return
				}
				// Each camera's lone vehicle keeps identifier 1; cross-camera
				// interference would show up as a different ID.
				if len(res.Active) != 1 || res.Active[0].ID != 1 {
					errs <- fmt.Errorf("camera %s frame %d: unexpected tracks %+v", s.CameraID, res.Frame, res.Active)
					return
				}
			}
			errs <- nil
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, m.CameraIDs(), cameras)
	summaries := m.StopAll()
	assert.Len(t, summaries, cameras)
	for _, sm := range summaries {
		assert.Equal(t, int64(frames), sm.Frames)
		assert.Equal(t, int64(1), sm.TracksCreated)
	}
}

func TestConcurrentConfigAndIngest(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)}); err != nil {
				t.Errorf("ingest: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			thresh := 0.2 + float64(i%5)*0.1
			if err := s.UpdateConfig(&config.TrackingParams{MatchThresh: floatPtr(thresh)}); err != nil {
				t.Errorf("update config: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	status := s.Status()
	assert.Equal(t, int64(50), status.Frames)
}

// ---------------------------------------------------------------------------
// sinks
// ---------------------------------------------------------------------------

func TestPublisherSeesEveryFrame(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	m := NewManager(ManagerOptions{Publisher: pub})
	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
		require.NoError(t, err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.frames, 5)
	assert.Equal(t, int64(1), pub.frames[0].Frame)
	assert.Equal(t, int64(5), pub.frames[4].Frame)
}

func TestRecorderFailuresDoNotStallIngest(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{err: errors.New("disk full")}
	m := NewManager(ManagerOptions{Recorder: rec})
	s, err := m.StartSession("cam-1", nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err = s.IngestFrame([]tracker.Detection{det(0, 0, 10, 10, 0.9)})
		require.NoError(t, err)
	}
	summary, err := m.StopSession("cam-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.Frames)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
