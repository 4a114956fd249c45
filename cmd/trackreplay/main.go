package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/db"
	"github.com/banshee-data/tracksight/internal/httputil"
	"github.com/banshee-data/tracksight/internal/report"
	"github.com/banshee-data/tracksight/internal/session"
	"github.com/banshee-data/tracksight/internal/tracker"
)

var (
	logPath    = flag.String("log", "", "JSONL detection log to replay (required)")
	cameraID   = flag.String("camera", "replay", "Camera ID to replay as")
	dbPath     = flag.String("db", "tracksight.db", "Path to the SQLite database file")
	serverURL  = flag.String("server", "", "Replay against a running server at this base URL instead of a local database")
	paramsPath = flag.String("params", "", "Tracking parameter overrides for this run (JSON file)")
	htmlOut    = flag.String("html", "", "Write the run report page to this HTML file")
	plotOut    = flag.String("plot", "", "Write the trajectory plot to this file (format from extension, e.g. .png or .svg)")
)

// frameLine is one frame of the detection log. Frame indices start at 1 and
// must be strictly increasing; gaps are allowed.
type frameLine struct {
	Frame      int64               `json:"frame"`
	Detections []tracker.Detection `json:"detections"`
}

func main() {
	flag.Parse()

	if *logPath == "" {
		log.Fatal("-log is required")
	}
	if *serverURL != "" && *plotOut != "" {
		log.Fatal("-plot needs the local observation rows; drop -server to use it")
	}

	frames, err := readLog(*logPath)
	if err != nil {
		log.Fatalf("read log: %v", err)
	}
	if len(frames) == 0 {
		log.Fatalf("detection log %s has no frames", *logPath)
	}

	var overrides *config.TrackingParams
	if *paramsPath != "" {
		overrides, err = config.LoadTrackingParams(*paramsPath)
		if err != nil {
			log.Fatalf("load params: %v", err)
		}
	}

	if *serverURL != "" {
		replayRemote(frames, overrides)
		return
	}
	replayLocal(frames, overrides)
}

// readLog parses the JSONL detection log, one frame per line.
func readLog(path string) ([]frameLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var frames []frameLine
	var lastFrame int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var fl frameLine
		if err := json.Unmarshal(line, &fl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if fl.Frame <= lastFrame {
			return nil, fmt.Errorf("line %d: frame %d is not after frame %d", lineNo, fl.Frame, lastFrame)
		}
		lastFrame = fl.Frame
		frames = append(frames, fl)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// replayLocal drives an embedded session against the database directly and
// reports from the stored rows.
func replayLocal(frames []frameLine, overrides *config.TrackingParams) {
	database, err := db.NewDBWithMigrationCheck(*dbPath, false)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := ensureCamera(database, *cameraID); err != nil {
		log.Fatalf("ensure camera: %v", err)
	}

	// Surface data-loss warnings; keep per-frame chatter off.
	session.SetLogWriters(os.Stderr, nil, nil)

	manager := session.NewManager(session.ManagerOptions{Recorder: database})
	live, err := manager.StartSession(*cameraID, overrides)
	if err != nil {
		log.Fatalf("start session: %v", err)
	}
	status := live.Status()
	if err := database.CreateTrackingRun(&db.TrackingRun{
		RunID:            live.RunID,
		CameraID:         *cameraID,
		StartedUnixNanos: status.StartedAt.UnixNano(),
	}); err != nil {
		log.Fatalf("create run: %v", err)
	}

	for _, fl := range frames {
		if _, err := live.IngestFrame(fl.Detections); err != nil {
			log.Fatalf("frame %d: %v", fl.Frame, err)
		}
	}

	summary, err := manager.StopSession(*cameraID)
	if err != nil {
		log.Fatalf("stop session: %v", err)
	}
	ended := summary.EndedAt.UnixNano()
	if err := database.FinishTrackingRun(&db.TrackingRun{
		RunID:             summary.RunID,
		EndedUnixNanos:    &ended,
		Frames:            summary.Frames,
		TracksCreated:     summary.TracksCreated,
		DroppedDetections: summary.DroppedDetections,
		DroppedRecords:    summary.DroppedRecords,
	}); err != nil {
		log.Fatalf("finish run: %v", err)
	}
	fmt.Printf("replayed %d frames as run %s\n", summary.Frames, summary.RunID)

	run, err := database.GetTrackingRun(summary.RunID)
	if err != nil {
		log.Fatalf("load run: %v", err)
	}
	tracks, err := database.GetRunTracks(run.RunID)
	if err != nil {
		log.Fatalf("load tracks: %v", err)
	}

	if *htmlOut != "" || *plotOut != "" {
		obs, err := database.GetRunObservations(run.RunID, 0)
		if err != nil {
			log.Fatalf("load observations: %v", err)
		}
		if *htmlOut != "" {
			var buf bytes.Buffer
			if err := report.RenderRunPage(&buf, run, tracks, obs); err != nil {
				log.Fatalf("render report: %v", err)
			}
			if err := os.WriteFile(*htmlOut, buf.Bytes(), 0o644); err != nil {
				log.Fatalf("write %s: %v", *htmlOut, err)
			}
			fmt.Printf("wrote report page %s\n", *htmlOut)
		}
		if *plotOut != "" {
			if err := report.SaveTrajectoryPlot(*plotOut, run, obs); err != nil {
				log.Fatalf("save plot: %v", err)
			}
			fmt.Printf("wrote trajectory plot %s\n", *plotOut)
		}
	}

	printSummary(report.Summarize(run, tracks))
}

// ensureCamera registers the replay camera on first use.
func ensureCamera(database *db.DB, cameraID string) error {
	_, err := database.GetCamera(cameraID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrCameraNotFound) {
		return err
	}
	return database.CreateCamera(&db.Camera{
		CameraID:        cameraID,
		Name:            cameraID,
		IsActive:        true,
		TrackingEnabled: true,
	})
}

// replayRemote drives a running server over its HTTP API, one ingest request
// per frame.
func replayRemote(frames []frameLine, overrides *config.TrackingParams) {
	client := httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second})
	base := strings.TrimRight(*serverURL, "/")

	if err := ensureRemoteCamera(client, base, *cameraID); err != nil {
		log.Fatalf("ensure camera: %v", err)
	}
	if err := postJSON(client, fmt.Sprintf("%s/api/cameras/%s/tracking/enable", base, *cameraID), nil, nil); err != nil {
		log.Fatalf("enable tracking: %v", err)
	}
	if overrides != nil {
		if err := putConfig(client, base, *cameraID, overrides); err != nil {
			log.Fatalf("apply params: %v", err)
		}
	}

	var started struct {
		RunID string `json:"run_id"`
	}
	if err := postJSON(client, fmt.Sprintf("%s/api/cameras/%s/tracking/start", base, *cameraID), nil, &started); err != nil {
		log.Fatalf("start tracking: %v", err)
	}
	fmt.Printf("started run %s\n", started.RunID)

	for _, fl := range frames {
		body := map[string]interface{}{"detections": fl.Detections}
		if err := postJSON(client, fmt.Sprintf("%s/api/cameras/%s/frames", base, *cameraID), body, nil); err != nil {
			log.Fatalf("frame %d: %v", fl.Frame, err)
		}
	}

	var stopped map[string]interface{}
	if err := postJSON(client, fmt.Sprintf("%s/api/cameras/%s/tracking/stop", base, *cameraID), nil, &stopped); err != nil {
		log.Fatalf("stop tracking: %v", err)
	}

	if *htmlOut != "" {
		resp, err := client.Get(fmt.Sprintf("%s/api/cameras/%s/tracks/chart", base, *cameraID))
		if err != nil {
			log.Fatalf("fetch report: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Fatalf("fetch report: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Fatalf("fetch report: %v", err)
		}
		if err := os.WriteFile(*htmlOut, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", *htmlOut, err)
		}
		fmt.Printf("wrote report page %s\n", *htmlOut)
	}

	out, err := json.MarshalIndent(stopped, "", "  ")
	if err != nil {
		log.Fatalf("encode summary: %v", err)
	}
	fmt.Println(string(out))
}

// ensureRemoteCamera registers the camera, tolerating one left over from an
// earlier replay.
func ensureRemoteCamera(client httputil.HTTPClient, base, cameraID string) error {
	data, err := json.Marshal(map[string]string{"camera_id": cameraID, "name": cameraID})
	if err != nil {
		return err
	}
	resp, err := client.Post(base+"/api/cameras", "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// putConfig installs parameter overrides for the camera before the run
// starts.
func putConfig(client httputil.HTTPClient, base, cameraID string, params *config.TrackingParams) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/cameras/%s/tracking/config", base, cameraID), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// postJSON sends body (an empty POST when body is nil) and decodes the
// response into out when out is non-nil. Non-2xx responses become errors
// carrying the server's message.
func postJSON(client httputil.HTTPClient, url string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	resp, err := client.Post(url, "application/json", rd)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// printSummary writes the aggregate run statistics to stdout as JSON.
func printSummary(s *report.RunSummary) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		log.Fatalf("encode summary: %v", err)
	}
}
