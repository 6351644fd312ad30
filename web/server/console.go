package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/df07/go-pathtracer/pkg/core"
)

// Console message levels
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ConsoleMessage is one line of render output mirrored to the browser console
type ConsoleMessage struct {
	RenderID  string    `json:"renderId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
}

// WebLogger implements core.Logger for a single render. Every line goes to the
// server log and, when there is room, to the render's console channel.
type WebLogger struct {
	renderID    string
	consoleChan chan<- ConsoleMessage
	serverLog   *log.Logger
}

// NewWebLogger creates a logger for one render. A nil channel logs to the server only.
func NewWebLogger(renderID string, consoleChan chan<- ConsoleMessage) core.Logger {
	return &WebLogger{
		renderID:    renderID,
		consoleChan: consoleChan,
		serverLog:   log.New(log.Writer(), "["+renderID+"] ", log.LstdFlags),
	}
}

// Printf implements core.Logger
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	wl.serverLog.Print(message)

	if wl.consoleChan == nil {
		return
	}

	// Never block the render on a slow client
	select {
	case wl.consoleChan <- ConsoleMessage{
		RenderID:  wl.renderID,
		Message:   message,
		Timestamp: time.Now(),
		Level:     messageLevel(message),
	}:
	default:
	}
}

// messageLevel classifies renderer output by its leading word
func messageLevel(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	switch {
	case strings.HasPrefix(lower, "warning"):
		return LevelWarning
	case strings.HasPrefix(lower, "error"), strings.HasPrefix(lower, "rendering failed"):
		return LevelError
	default:
		return LevelInfo
	}
}
