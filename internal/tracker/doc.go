// Package tracker implements the per-camera multi-object tracking engine.
//
// Responsibilities: detection validation, constant-velocity Kalman motion
// estimation, two-pass confidence-split association over an exact
// assignment solver, and track lifecycle (creation, confirmation, coasting,
// removal). Key types: Tracker, Detection, Snapshot, Config.
//
// The engine is deliberately I/O free: it never touches the network, the
// database, or the clock. Persistence and transport live in the session and
// api packages; this package only maps frames of detections to stable
// track identities.
package tracker
