package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/df07/go-pathtracer/pkg/scene"
)

// Request limits shared by the render, scene-config and inspect endpoints
const (
	MinWidth      = 16
	MaxWidth      = 2000
	MaxSamples    = 10000
	MaxPasses     = 1000
	MaxDepthLimit = 200
)

// Server handles web requests for the progressive path tracer
type Server struct {
	port      int
	staticDir string
}

// NewServer creates a new web server
func NewServer(port int) *Server {
	return &Server{port: port, staticDir: "static"}
}

// WithStaticDir sets the directory served at "/"
func (s *Server) WithStaticDir(dir string) *Server {
	s.staticDir = dir
	return s
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene      string `json:"scene"`      // Built-in scene id
	Seed       int64  `json:"seed"`       // Seed for scene generation and sampling
	Width      int    `json:"width"`      // Image width; height follows the camera aspect ratio
	MaxSamples int    `json:"maxSamples"` // Maximum samples per pixel
	MaxPasses  int    `json:"maxPasses"`  // Maximum number of passes
	MaxDepth   int    `json:"maxDepth"`   // Maximum bounce depth
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve static files
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))

	mux.HandleFunc("/ws/render", s.handleRender)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/scene-config", s.handleSceneConfig)
	mux.HandleFunc("/api/inspect", s.handleInspect)

	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists the built-in scenes
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scene.ScenesResponse{Scenes: scene.ListScenes()})
}

// handleSceneConfig returns the recommended configuration for a scene
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	sceneName := r.URL.Query().Get("scene")
	if sceneName == "" {
		sceneName = "default"
	}

	sceneObj, err := scene.New(sceneName, 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	config := sceneObj.SamplingConfig
	response := map[string]interface{}{
		"scene": sceneName,
		"defaults": map[string]interface{}{
			"width":           config.Width,
			"height":          config.Height,
			"samplesPerPixel": config.SamplesPerPixel,
			"maxDepth":        config.MaxDepth,
			"aspectRatio":     sceneObj.CameraConfig.AspectRatio,
		},
		"limits": map[string]interface{}{
			"width":      map[string]int{"min": MinWidth, "max": MaxWidth},
			"maxSamples": map[string]int{"min": 1, "max": MaxSamples},
			"maxPasses":  map[string]int{"min": 1, "max": MaxPasses},
			"maxDepth":   map[string]int{"min": 1, "max": MaxDepthLimit},
		},
	}

	writeJSON(w, http.StatusOK, response)
}

// parseCommonSceneParams parses the parameters that select and size a scene
func (s *Server) parseCommonSceneParams(r *http.Request, req *RenderRequest) error {
	values := r.URL.Query()

	req.Scene = values.Get("scene")
	if req.Scene == "" {
		req.Scene = "default"
	}

	var err error
	if req.Seed, err = parseInt64Param(values, "seed", 42); err != nil {
		return err
	}
	if req.Width, err = parseIntParam(values, "width", 400, MinWidth, MaxWidth); err != nil {
		return err
	}
	return nil
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	req := &RenderRequest{}

	if err := s.parseCommonSceneParams(r, req); err != nil {
		return nil, err
	}

	var err error
	values := r.URL.Query()
	if req.MaxSamples, err = parseIntParam(values, "maxSamples", 50, 1, MaxSamples); err != nil {
		return nil, err
	}
	if req.MaxPasses, err = parseIntParam(values, "maxPasses", 7, 1, MaxPasses); err != nil {
		return nil, err
	}
	// Omitted keeps the scene's recommended depth
	if req.MaxDepth, err = parseIntParam(values, "maxDepth", 0, 1, MaxDepthLimit); err != nil {
		return nil, err
	}

	// Performance warning
	if req.Width > 800 && req.MaxSamples > 100 {
		log.Printf("Render warning: Large image with high samples may render slowly")
	}

	return req, nil
}

// createScene builds the requested scene at the requested width
func (s *Server) createScene(req *RenderRequest) (*scene.Scene, error) {
	sceneObj, err := scene.New(req.Scene, req.Seed)
	if err != nil {
		return nil, err
	}

	sceneObj.SamplingConfig.Width = req.Width
	sceneObj.SamplingConfig.Height = scene.HeightForWidth(req.Width, sceneObj.CameraConfig.AspectRatio)
	if req.MaxDepth > 0 {
		sceneObj.SamplingConfig.MaxDepth = req.MaxDepth
	}
	return sceneObj, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseInt64Param parses an unbounded 64-bit integer parameter
func parseInt64Param(values url.Values, key string, defaultValue int64) (int64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
