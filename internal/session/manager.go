package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/timeutil"
)

// Manager is the camera-to-session registry. Sessions share nothing with
// each other, so cameras run fully in parallel; the manager's lock only
// guards the registry itself.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	defaults  *config.TrackingParams
	recorder  RunRecorder
	publisher FramePublisher
	clock     timeutil.Clock
}

// ManagerOptions carries the dependencies shared by all sessions. Recorder
// and Publisher may be nil to disable persistence or live streaming; a nil
// Clock means wall time.
type ManagerOptions struct {
	Defaults  *config.TrackingParams
	Recorder  RunRecorder
	Publisher FramePublisher
	Clock     timeutil.Clock
}

// NewManager creates an empty registry.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Defaults == nil {
		opts.Defaults = config.DefaultTrackingParams()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		defaults:  opts.Defaults,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		clock:     opts.Clock,
	}
}

// StartSession creates and registers a session for a camera. The camera's
// stored parameter overrides, if any, are layered over the manager defaults.
// A camera can hold at most one live session; a fresh session always starts
// with an empty track set and identifiers from 1.
func (m *Manager) StartSession(cameraID string, overrides *config.TrackingParams) (*Session, error) {
	params := m.defaults
	if overrides != nil {
		if err := overrides.Validate(); err != nil {
			return nil, fmt.Errorf("camera %s params: %w", cameraID, err)
		}
		params = overrides.Merge(m.defaults)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[cameraID]; exists {
		return nil, ErrSessionActive
	}

	runID := "run_" + uuid.New().String()
	s := newSession(cameraID, runID, params, m.recorder, m.publisher, m.clock)
	m.sessions[cameraID] = s
	diagf("camera %s: started run %s", cameraID, runID)
	return s, nil
}

// StopSession stops and unregisters a camera's session, returning the run
// summary for persistence.
func (m *Manager) StopSession(cameraID string) (Summary, error) {
	m.mu.Lock()
	s, ok := m.sessions[cameraID]
	if ok {
		delete(m.sessions, cameraID)
	}
	m.mu.Unlock()

	if !ok {
		return Summary{}, ErrNoSession
	}
	summary := s.Stop()
	diagf("camera %s: stopped run %s after %d frames", cameraID, summary.RunID, summary.Frames)
	return summary, nil
}

// Get returns the live session for a camera.
func (m *Manager) Get(cameraID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[cameraID]
	return s, ok
}

// CameraIDs returns the cameras with live sessions, sorted for stable output.
func (m *Manager) CameraIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll stops every live session and returns their summaries, used during
// shutdown.
func (m *Manager) StopAll() []Summary {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Stop())
	}
	return summaries
}
