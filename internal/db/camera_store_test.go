package db

import (
	"errors"
	"testing"
)

func TestCreateAndGetCamera(t *testing.T) {
	db := newTestDB(t)

	cam := &Camera{
		CameraID:  "cam-north",
		Name:      "North Gate",
		StreamURL: "rtsp://10.0.0.5/stream1",
		Location:  "North parking entrance",
		IsActive:  true,
	}
	if err := db.CreateCamera(cam); err != nil {
		t.Fatalf("CreateCamera failed: %v", err)
	}
	if cam.CreatedAt.IsZero() || cam.UpdatedAt.IsZero() {
		t.Error("expected CreateCamera to set timestamps")
	}

	got, err := db.GetCamera("cam-north")
	if err != nil {
		t.Fatalf("GetCamera failed: %v", err)
	}

	if got.Name != "North Gate" {
		t.Errorf("expected name 'North Gate', got %q", got.Name)
	}
	if got.StreamURL != "rtsp://10.0.0.5/stream1" {
		t.Errorf("unexpected stream URL %q", got.StreamURL)
	}
	if !got.IsActive {
		t.Error("expected camera to be active")
	}
	if got.TrackingEnabled {
		t.Error("tracking should default to disabled")
	}
	if got.TrackingConfig != nil {
		t.Errorf("expected nil tracking config, got %q", *got.TrackingConfig)
	}
}

func TestCreateCameraValidation(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateCamera(&Camera{Name: "No ID"}); err == nil {
		t.Error("expected error for missing camera_id")
	}
	if err := db.CreateCamera(&Camera{CameraID: "cam-x"}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestCreateCameraDuplicate(t *testing.T) {
	db := newTestDB(t)

	cam := &Camera{CameraID: "cam-1", Name: "First"}
	if err := db.CreateCamera(cam); err != nil {
		t.Fatalf("CreateCamera failed: %v", err)
	}

	err := db.CreateCamera(&Camera{CameraID: "cam-1", Name: "Second"})
	if !errors.Is(err, ErrCameraExists) {
		t.Errorf("expected ErrCameraExists, got: %v", err)
	}
}

func TestGetCameraNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetCamera("nope")
	if !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound, got: %v", err)
	}
}

func TestGetAllCamerasOrdered(t *testing.T) {
	db := newTestDB(t)

	for _, id := range []string{"cam-c", "cam-a", "cam-b"} {
		if err := db.CreateCamera(&Camera{CameraID: id, Name: id}); err != nil {
			t.Fatalf("CreateCamera(%s) failed: %v", id, err)
		}
	}

	cameras, err := db.GetAllCameras()
	if err != nil {
		t.Fatalf("GetAllCameras failed: %v", err)
	}
	if len(cameras) != 3 {
		t.Fatalf("expected 3 cameras, got %d", len(cameras))
	}
	for i, want := range []string{"cam-a", "cam-b", "cam-c"} {
		if cameras[i].CameraID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, cameras[i].CameraID)
		}
	}
}

func TestSetTrackingEnabled(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateCamera(&Camera{CameraID: "cam-1", Name: "One"}); err != nil {
		t.Fatalf("CreateCamera failed: %v", err)
	}

	if err := db.SetTrackingEnabled("cam-1", true); err != nil {
		t.Fatalf("SetTrackingEnabled failed: %v", err)
	}
	cam, err := db.GetCamera("cam-1")
	if err != nil {
		t.Fatalf("GetCamera failed: %v", err)
	}
	if !cam.TrackingEnabled {
		t.Error("expected tracking to be enabled")
	}

	if err := db.SetTrackingEnabled("cam-1", false); err != nil {
		t.Fatalf("SetTrackingEnabled(false) failed: %v", err)
	}
	cam, err = db.GetCamera("cam-1")
	if err != nil {
		t.Fatalf("GetCamera failed: %v", err)
	}
	if cam.TrackingEnabled {
		t.Error("expected tracking to be disabled")
	}

	if err := db.SetTrackingEnabled("missing", true); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound for unknown camera, got: %v", err)
	}
}

func TestSetTrackingConfig(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateCamera(&Camera{CameraID: "cam-1", Name: "One"}); err != nil {
		t.Fatalf("CreateCamera failed: %v", err)
	}

	cfg := `{"track_thresh":0.6}`
	if err := db.SetTrackingConfig("cam-1", &cfg); err != nil {
		t.Fatalf("SetTrackingConfig failed: %v", err)
	}
	cam, err := db.GetCamera("cam-1")
	if err != nil {
		t.Fatalf("GetCamera failed: %v", err)
	}
	if cam.TrackingConfig == nil || *cam.TrackingConfig != cfg {
		t.Errorf("expected tracking config %q, got %v", cfg, cam.TrackingConfig)
	}

	// nil clears the overrides
	if err := db.SetTrackingConfig("cam-1", nil); err != nil {
		t.Fatalf("SetTrackingConfig(nil) failed: %v", err)
	}
	cam, err = db.GetCamera("cam-1")
	if err != nil {
		t.Fatalf("GetCamera failed: %v", err)
	}
	if cam.TrackingConfig != nil {
		t.Errorf("expected cleared tracking config, got %q", *cam.TrackingConfig)
	}

	if err := db.SetTrackingConfig("missing", &cfg); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound for unknown camera, got: %v", err)
	}
}
