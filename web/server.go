package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrUnsupportedPlatform is returned when browser opening is not supported.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

//go:embed static/*
var staticFiles embed.FS

// PositionController exposes the live listener-relative position of a
// binaural source, and the playback progress of the render it drives.
type PositionController interface {
	GetAzimuth() float64
	GetElevation() float64
	GetDistance() float64
	SetAzimuth(value float64)
	SetElevation(value float64)
	SetDistance(value float64)
	Progress() (position, length int64)
}

// IREntry represents an HRTF/impulse-response library entry for JSON serialization.
type IREntry struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	SampleRate float64 `json:"sampleRate"`
	Channels   int     `json:"channels"`
	Samples    int     `json:"samples"`
	Duration   float64 `json:"duration"`
}

// Message represents a WebSocket message.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatePayload represents the current source position and progress.
type StatePayload struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Distance  float64 `json:"distance"`
	Position  int64   `json:"position"`
	Length    int64   `json:"length"`
}

// Server is the web status/control server for a binaural render.
type Server struct {
	render        PositionController
	irList        []IREntry
	port          int
	hub           *Hub
	httpServer    *http.Server

	mu sync.RWMutex
}

// NewServer creates a new web server bound to render.
func NewServer(render PositionController, irList []IREntry, port int) *Server {
	return &Server{
		render: render,
		irList: irList,
		port:   port,
		hub:    NewHub(),
	}
}

// SetIRList replaces the IR list served to clients.
func (s *Server) SetIRList(entries []IREntry) {
	s.mu.Lock()
	s.irList = entries
	s.mu.Unlock()
}

// Start starts the web server. It blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.progressBroadcastLoop()

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create static file system: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/state", s.handleAPIState)
	mux.HandleFunc("/api/ir-list", s.handleAPIIRList)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Web server starting", "port", s.port, "url", fmt.Sprintf("http://localhost:%d", s.port))

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

//nolint:gochecknoglobals // WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins for local development
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	s.hub.register <- client

	s.sendState(client)
	s.sendIRList(client)

	go client.writePump()
	client.readPump(func(msg []byte) {
		s.handleClientMessage(msg)
	})
}

func (s *Server) sendState(client *Client) {
	state := s.currentState()

	msg := Message{Type: "state", Payload: state}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal state", "error", err)
		return
	}

	client.send <- data
}

func (s *Server) sendIRList(client *Client) {
	s.mu.RLock()
	list := s.irList
	s.mu.RUnlock()

	msg := Message{Type: "ir_list", Payload: list}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal IR list", "error", err)
		return
	}

	client.send <- data
}

func (s *Server) currentState() StatePayload {
	az := s.render.GetAzimuth()
	el := s.render.GetElevation()
	dist := s.render.GetDistance()
	pos, length := s.render.Progress()

	return StatePayload{
		Azimuth:   az,
		Elevation: el,
		Distance:  dist,
		Position:  pos,
		Length:    length,
	}
}

func (s *Server) handleClientMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("Failed to parse WebSocket message", "error", err)
		return
	}

	payload, ok := msg.Payload.(map[string]interface{})
	if !ok {
		return
	}

	value, ok := payload["value"].(float64)
	if !ok {
		return
	}

	switch msg.Type {
	case "set_azimuth":
		s.render.SetAzimuth(value)
		s.broadcastParamChange("azimuth", value)
	case "set_elevation":
		s.render.SetElevation(value)
		s.broadcastParamChange("elevation", value)
	case "set_distance":
		s.render.SetDistance(value)
		s.broadcastParamChange("distance", value)
	}
}

func (s *Server) broadcastParamChange(param string, value float64) {
	msg := Message{
		Type: "param_changed",
		Payload: map[string]interface{}{
			"param": param,
			"value": value,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal param change", "error", err)
		return
	}

	s.hub.Broadcast(data)
}

// progressBroadcastLoop broadcasts source position and render progress
// at 50ms intervals while clients are connected.
func (s *Server) progressBroadcastLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if s.hub.ClientCount() == 0 {
			continue
		}

		msg := Message{Type: "state", Payload: s.currentState()}

		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		s.hub.Broadcast(data)
	}
}

func (s *Server) handleAPIState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errchkjson // StatePayload is a well-defined struct
	_ = json.NewEncoder(w).Encode(s.currentState())
}

func (s *Server) handleAPIIRList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	list := s.irList
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	//nolint:errchkjson // IREntry slice is well-defined
	_ = json.NewEncoder(w).Encode(list)
}

// OpenBrowser opens the default browser to the specified URL.
func OpenBrowser(url string) error {
	ctx := context.Background()

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
	}

	return cmd.Start()
}
