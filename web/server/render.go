package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/renderer"
	"github.com/df07/go-pathtracer/pkg/scene"
	"github.com/gorilla/websocket"
)

const (
	// DefaultTileSize is the tile edge used for web renders
	DefaultTileSize = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is a single JSON frame sent over the render WebSocket
type Event struct {
	Type string      `json:"type"` // "console", "tile", "passComplete", "error", "complete"
	Data interface{} `json:"data"`
}

// TileUpdate represents a single tile update
type TileUpdate struct {
	TileX       int    `json:"tileX"`
	TileY       int    `json:"tileY"`
	ImageData   string `json:"imageData"` // Base64 encoded PNG of just this tile
	PassNumber  int    `json:"passNumber"`
	TileNumber  int    `json:"tileNumber"`  // Current tile number in this pass (1-based)
	TotalTiles  int    `json:"totalTiles"`  // Total number of tiles in the image
	TotalPasses int    `json:"totalPasses"` // Total number of passes planned
}

// PassUpdate is sent when a pass completes and carries the whole image
type PassUpdate struct {
	PassNumber     int     `json:"passNumber"`
	TotalPasses    int     `json:"totalPasses"`
	ImageData      string  `json:"imageData"` // Base64 encoded PNG
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	ElapsedMs      int64   `json:"elapsedMs"`
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	MaxSamples     int     `json:"maxSamples"`
	MinSamples     int     `json:"minSamples"`
	MaxSamplesUsed int     `json:"maxSamplesUsed"`
	PrimitiveCount int     `json:"primitiveCount"`
	IsLast         bool    `json:"isLast"`
}

// RenderingPipeline contains the configured scene and raytracer
type RenderingPipeline struct {
	Scene     *scene.Scene
	Raytracer *renderer.ProgressiveRaytracer
}

// handleRender upgrades to a WebSocket and streams a progressive render over it.
// Closing the socket cancels the render.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Single writer goroutine owns all writes to the connection
	events := make(chan Event, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeEvents(conn, events, cancel)
	}()

	// Reader: only pongs and the close frame are expected
	go s.readUntilClosed(conn, cancel)

	// Setup console logging and streaming
	consoleChan, webLogger := s.setupConsoleLogging()
	stopConsole := make(chan struct{})
	var consoleWG sync.WaitGroup
	consoleWG.Add(1)
	go func() {
		defer consoleWG.Done()
		s.streamConsoleMessages(ctx, stopConsole, consoleChan, events)
	}()

	final := s.render(ctx, req, webLogger, events)

	// Console output logged during the render goes out before the final event
	close(stopConsole)
	consoleWG.Wait()
	if final != nil {
		select {
		case events <- *final:
		case <-ctx.Done():
		}
	}
	close(events)
	<-writerDone
}

// render runs the pipeline, forwarding its progress as events, and returns
// the closing "complete" or "error" event. It returns nil if the client went away.
func (s *Server) render(ctx context.Context, req *RenderRequest, logger core.Logger, events chan<- Event) *Event {
	pipeline, err := s.setupRenderingPipeline(req, logger)
	if err != nil {
		return errorEvent(err.Error())
	}

	startTime := time.Now()
	passChan, tileChan, errChan := pipeline.Raytracer.RenderProgressive(ctx, renderer.RenderOptions{TileUpdates: true})

	return s.handleRenderingEvents(ctx, events, passChan, tileChan, errChan, pipeline.Scene, req, startTime)
}

// writeEvents writes queued events as JSON frames and keeps the connection alive with pings.
// It returns once events is closed, after sending a close frame.
func (s *Server) writeEvents(conn *websocket.Conn, events <-chan Event, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	failed := false
	for {
		select {
		case event, ok := <-events:
			if !ok {
				if !failed {
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "render finished"))
				}
				return
			}
			if failed {
				continue // Drain so producers never block
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				failed = true
				cancel()
			}

		case <-ticker.C:
			if failed {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				failed = true
				cancel()
			}
		}
	}
}

// readUntilClosed discards client messages and cancels the render when the connection goes away
func (s *Server) readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging() (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	webLogger := NewWebLogger(renderID, consoleChan)
	return consoleChan, webLogger
}

// streamConsoleMessages forwards console messages until stop is closed or the client goes away
func (s *Server) streamConsoleMessages(ctx context.Context, stop <-chan struct{}, consoleChan <-chan ConsoleMessage, events chan<- Event) {
	for {
		select {
		case consoleMsg := <-consoleChan:
			select {
			case events <- Event{Type: "console", Data: consoleMsg}:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message to avoid blocking
			}

		case <-stop:
			// Flush whatever the render logged before it finished
			for {
				select {
				case consoleMsg := <-consoleChan:
					select {
					case events <- Event{Type: "console", Data: consoleMsg}:
					default:
					}
				default:
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// setupRenderingPipeline creates and configures the scene and raytracer
func (s *Server) setupRenderingPipeline(req *RenderRequest, logger core.Logger) (*RenderingPipeline, error) {
	sceneObj, err := s.createScene(req)
	if err != nil {
		return nil, err
	}

	config := renderer.ProgressiveConfig{
		TileSize:           DefaultTileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: req.MaxSamples,
		MaxPasses:          req.MaxPasses,
		NumWorkers:         0, // Auto-detect
		Seed:               req.Seed,
	}

	width, height := sceneObj.SamplingConfig.Width, sceneObj.SamplingConfig.Height
	logger.Printf("Scene %s: %d spheres, %dx%d\n", req.Scene, sceneObj.GetPrimitiveCount(), width, height)

	raytracer := renderer.NewProgressiveRaytracer(sceneObj, width, height, config, logger)
	return &RenderingPipeline{
		Scene:     sceneObj,
		Raytracer: raytracer,
	}, nil
}

// handleRenderingEvents processes the main rendering event loop
func (s *Server) handleRenderingEvents(ctx context.Context, events chan<- Event,
	passChan <-chan renderer.PassResult, tileChan <-chan renderer.TileCompletionResult, errChan <-chan error,
	scene *scene.Scene, req *RenderRequest, startTime time.Time) *Event {

	for passChan != nil || tileChan != nil {
		select {
		case passResult, ok := <-passChan:
			if !ok {
				passChan = nil // Channel closed
				continue
			}
			s.handlePassComplete(ctx, events, passResult, req, scene, startTime)

		case tileResult, ok := <-tileChan:
			if !ok {
				tileChan = nil // Channel closed
				continue
			}
			s.handleTileUpdate(ctx, events, tileResult)

		case <-ctx.Done():
			// Client disconnected
			return nil
		}
	}

	if err := <-errChan; err != nil {
		return errorEvent(fmt.Sprintf("Rendering failed: %v", err))
	}
	return &Event{Type: "complete", Data: "Rendering completed"}
}

// handlePassComplete processes and sends pass completion events
func (s *Server) handlePassComplete(ctx context.Context, events chan<- Event, passResult renderer.PassResult, req *RenderRequest, scene *scene.Scene, startTime time.Time) {
	imageData, err := imageToBase64PNG(passResult.Image)
	if err != nil {
		log.Printf("Error encoding pass image: %v", err)
		return
	}

	bounds := passResult.Image.Bounds()
	update := PassUpdate{
		PassNumber:     passResult.PassNumber,
		TotalPasses:    req.MaxPasses,
		ImageData:      imageData,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		ElapsedMs:      time.Since(startTime).Milliseconds(),
		TotalPixels:    passResult.Stats.TotalPixels,
		TotalSamples:   passResult.Stats.TotalSamples,
		AverageSamples: passResult.Stats.AverageSamples,
		MaxSamples:     passResult.Stats.MaxSamples,
		MinSamples:     passResult.Stats.MinSamples,
		MaxSamplesUsed: passResult.Stats.MaxSamplesUsed,
		PrimitiveCount: scene.GetPrimitiveCount(),
		IsLast:         passResult.IsLast,
	}

	select {
	case events <- Event{Type: "passComplete", Data: update}:
	case <-ctx.Done():
	}
}

// handleTileUpdate processes and sends tile update events
func (s *Server) handleTileUpdate(ctx context.Context, events chan<- Event, tileResult renderer.TileCompletionResult) {
	tileData, err := imageToBase64PNG(tileResult.TileImage)
	if err != nil {
		log.Printf("Error encoding tile image (%d, %d): %v", tileResult.TileX, tileResult.TileY, err)
		return
	}

	update := TileUpdate{
		TileX:       tileResult.TileX,
		TileY:       tileResult.TileY,
		ImageData:   tileData,
		PassNumber:  tileResult.PassNumber,
		TileNumber:  tileResult.TileNumber,
		TotalTiles:  tileResult.TotalTiles,
		TotalPasses: tileResult.TotalPasses,
	}

	select {
	case events <- Event{Type: "tile", Data: update}:
	case <-ctx.Done():
	}
}

func errorEvent(message string) *Event {
	return &Event{Type: "error", Data: message}
}
