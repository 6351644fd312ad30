package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/df07/go-pathtracer/pkg/scene"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := NewServer(0)
	srv.staticDir = t.TempDir()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Decoding %s failed: %v", url, err)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	getJSON(t, ts.URL+"/api/health", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
}

func TestScenes(t *testing.T) {
	ts := newTestServer(t)

	var body scene.ScenesResponse
	getJSON(t, ts.URL+"/api/scenes", http.StatusOK, &body)
	if len(body.Scenes) != len(scene.Names()) {
		t.Fatalf("Expected %d scenes, got %d", len(scene.Names()), len(body.Scenes))
	}
	if body.Scenes[0].ID != "default" {
		t.Errorf("Expected scenes sorted by id, got %+v", body.Scenes)
	}
}

func TestSceneConfig(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		Scene    string         `json:"scene"`
		Defaults map[string]any `json:"defaults"`
	}
	getJSON(t, ts.URL+"/api/scene-config?scene=random", http.StatusOK, &body)
	if body.Scene != "random" || body.Defaults["samplesPerPixel"] != float64(100) {
		t.Errorf("Unexpected scene config %+v", body)
	}

	getJSON(t, ts.URL+"/api/scene-config?scene=teapot", http.StatusBadRequest, nil)
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		expected  int
		expectErr bool
	}{
		{"default", "", 7, false},
		{"valid", "n=12", 12, false},
		{"too small", "n=0", 0, true},
		{"too large", "n=101", 0, true},
		{"not a number", "n=abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			got, err := parseIntParam(values, "n", 7, 1, 100)
			if (err != nil) != tt.expectErr {
				t.Fatalf("Unexpected error state: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestParseRenderRequest(t *testing.T) {
	srv := NewServer(0)

	r := httptest.NewRequest(http.MethodGet, "/ws/render?scene=motion&seed=-3&width=200&maxSamples=9&maxPasses=3&maxDepth=12", nil)
	req, err := srv.parseRenderRequest(r)
	if err != nil {
		t.Fatalf("parseRenderRequest failed: %v", err)
	}
	expected := RenderRequest{Scene: "motion", Seed: -3, Width: 200, MaxSamples: 9, MaxPasses: 3, MaxDepth: 12}
	if *req != expected {
		t.Errorf("Expected %+v, got %+v", expected, *req)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/render?width=5", nil)
	if _, err := srv.parseRenderRequest(r); err == nil {
		t.Error("Expected an error for a width below the minimum")
	}
	r = httptest.NewRequest(http.MethodGet, "/ws/render?seed=x", nil)
	if _, err := srv.parseRenderRequest(r); err == nil {
		t.Error("Expected an error for a non-numeric seed")
	}
}

func TestParseRenderRequestMaxDepth(t *testing.T) {
	srv := NewServer(0)

	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 0, false}, // Scene default
		{"maxDepth=1", 1, false},
		{"maxDepth=200", 200, false},
		{"maxDepth=0", 0, true},
		{"maxDepth=201", 0, true},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws/render?"+tt.query, nil)
		req, err := srv.parseRenderRequest(r)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected an error", tt.query)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.query, err)
			continue
		}
		if req.MaxDepth != tt.want {
			t.Errorf("%q: expected maxDepth %d, got %d", tt.query, tt.want, req.MaxDepth)
		}
	}
}

func TestCreateSceneAppliesRequest(t *testing.T) {
	srv := NewServer(0)

	s, err := srv.createScene(&RenderRequest{Scene: "default", Width: 160, MaxDepth: 3})
	if err != nil {
		t.Fatalf("createScene failed: %v", err)
	}
	if s.SamplingConfig.Width != 160 || s.SamplingConfig.Height != 90 || s.SamplingConfig.MaxDepth != 3 {
		t.Errorf("Unexpected sampling config %+v", s.SamplingConfig)
	}
}

func TestInspect(t *testing.T) {
	ts := newTestServer(t)

	var hit InspectResponse
	getJSON(t, ts.URL+"/api/inspect?scene=default&width=64&x=32&y=18", http.StatusOK, &hit)
	if !hit.Hit || hit.MaterialType != "lambertian" || hit.GeometryType != "sphere" {
		t.Errorf("Expected to hit the diffuse centre sphere, got %+v", hit)
	}
	if !hit.FrontFace || hit.Distance <= 0 {
		t.Errorf("Unexpected hit geometry %+v", hit)
	}

	var miss InspectResponse
	getJSON(t, ts.URL+"/api/inspect?scene=default&width=64&x=0&y=0", http.StatusOK, &miss)
	if miss.Hit {
		t.Errorf("Expected the top-left corner to see only sky, got %+v", miss)
	}

	getJSON(t, ts.URL+"/api/inspect?scene=default&width=64&x=64&y=0", http.StatusBadRequest, nil)
	getJSON(t, ts.URL+"/api/inspect?scene=default&x=a&y=0", http.StatusBadRequest, nil)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readFrames collects frames until the server closes the connection
func readFrames(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("Connection ended abnormally: %v", err)
			}
			return frames
		}
		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("Invalid frame %q: %v", msg, err)
		}
		frames = append(frames, f)
	}
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestRenderWebSocket(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/render?scene=default&width=48&maxSamples=2&maxPasses=2&maxDepth=4"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frames := readFrames(t, conn)

	counts := make(map[string]int)
	var lastPass PassUpdate
	for _, f := range frames {
		counts[f.Type]++
		if f.Type == "passComplete" {
			if err := json.Unmarshal(f.Data, &lastPass); err != nil {
				t.Fatalf("Invalid pass frame: %v", err)
			}
		}
	}

	if counts["error"] != 0 {
		t.Fatalf("Unexpected error frames: %+v", frames)
	}
	if counts["passComplete"] != 2 {
		t.Errorf("Expected 2 pass frames, got %d", counts["passComplete"])
	}
	if counts["tile"] == 0 {
		t.Error("Expected tile frames")
	}
	if counts["console"] == 0 {
		t.Error("Expected console frames")
	}
	if frames[len(frames)-1].Type != "complete" {
		t.Errorf("Expected the last frame to be complete, got %s", frames[len(frames)-1].Type)
	}
	if !lastPass.IsLast || lastPass.Width != 48 || lastPass.Height != 27 || lastPass.ImageData == "" {
		t.Errorf("Unexpected final pass %+v", lastPass)
	}
}

func TestRenderWebSocketUnknownScene(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/render?scene=teapot&width=32"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frames := readFrames(t, conn)
	found := false
	for _, f := range frames {
		if f.Type == "error" {
			found = true
		}
		if f.Type == "complete" {
			t.Error("An unknown scene must not complete")
		}
	}
	if !found {
		t.Errorf("Expected an error frame, got %+v", frames)
	}
}

func TestRenderWebSocketBadRequest(t *testing.T) {
	ts := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/render?maxSamples=0"), nil)
	if err == nil {
		t.Fatal("Expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %+v", resp)
	}
}

func TestRenderWebSocketClientDisconnect(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/render?scene=random&width=200&maxSamples=500&maxPasses=50"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	// Read one frame then hang up; the server must stop rendering without hanging the test server
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Expected at least one frame: %v", err)
	}
	conn.Close()
}
