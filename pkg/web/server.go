package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/ritzau/flow-editor/pkg/cycles"
	"github.com/ritzau/flow-editor/pkg/graph"
	"github.com/ritzau/flow-editor/pkg/lens"
	"github.com/ritzau/flow-editor/pkg/logging"
	"github.com/ritzau/flow-editor/pkg/machine"
	"github.com/ritzau/flow-editor/pkg/model"
	"github.com/ritzau/flow-editor/pkg/pubsub"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 4 << 20

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 5 * time.Second

// Server is the canvas host: the browser's canvas library talks to the
// graph machine through it.
type Server struct {
	router    *mux.Router
	machine   *machine.Machine
	publisher pubsub.Publisher

	canvasMu sync.Mutex
	canvas   *machine.ViewportCanvas
}

// StatsResponse is the /api/graph/stats payload
type StatsResponse struct {
	graph.Stats
	Cycles []cycles.NodeCycle `json:"cycles"`
}

// DistancesResponse is the /api/graph/distances payload. Distances holds
// lens.Infinite for nodes not connected to the selection.
type DistancesResponse struct {
	Selected  []string       `json:"selected"`
	Distances map[string]int `json:"distances"`
	Within    []string       `json:"within,omitempty"`
}

type addNodeRequest struct {
	Node  model.Node       `json:"node"`
	Point model.XYPosition `json:"point"`
}

type colorRequest struct {
	Color string `json:"color"`
}

// NewServer creates a canvas host for m. publisher should be the one whose
// SnapshotPublisher observes m.
func NewServer(m *machine.Machine, publisher pubsub.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		machine:   m,
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/graph", s.handleSubscribe(pubsub.TopicGraphState)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/saved", s.handleSubscribe(pubsub.TopicGraphSaved)).Methods("GET")

	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/graph/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/api/graph/distances", s.handleDistances).Methods("GET")
	s.router.HandleFunc("/api/canvas", s.handleCanvas).Methods("POST")

	// More specific node routes first
	s.router.HandleFunc("/api/nodes/changes", s.handleNodeChanges).Methods("POST")
	s.router.HandleFunc("/api/nodes/{id}/color", s.handleNodeColor).Methods("POST")
	s.router.HandleFunc("/api/nodes", s.handleAddNode).Methods("POST")
	s.router.HandleFunc("/api/nodes", s.handleSetNodes).Methods("PUT")

	s.router.HandleFunc("/api/edges/changes", s.handleEdgeChanges).Methods("POST")
	s.router.HandleFunc("/api/edges", s.handleSetEdges).Methods("PUT")
	s.router.HandleFunc("/api/connect", s.handleConnect).Methods("POST")
}

// Handler returns the HTTP handler with request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer sub.Close()

		// Initial comment establishes the stream (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		flush(w)

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client gone", "topic", topic, "error", err)
				return
			}
			flush(w)
		}
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap := s.machine.Snapshot()
	status := http.StatusOK
	if !hasGraph(snap) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, graphState(snap))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.machine.Snapshot()
	if !hasGraph(snap) {
		http.Error(w, fmt.Sprintf("graph not available in state %s", snap.State), http.StatusServiceUnavailable)
		return
	}

	doc := snap.Document()
	resp := StatsResponse{
		Stats:  graph.Analyze(doc),
		Cycles: cycles.FindNodeCycles(graph.Build(doc)),
	}
	if resp.Cycles == nil {
		resp.Cycles = []cycles.NodeCycle{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDistances reports hop distances from the nodes named by repeated
// "from" parameters; "max" additionally lists the nodes within that range.
func (s *Server) handleDistances(w http.ResponseWriter, r *http.Request) {
	snap := s.machine.Snapshot()
	if !hasGraph(snap) {
		http.Error(w, fmt.Sprintf("graph not available in state %s", snap.State), http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	selected := query["from"]
	if len(selected) == 0 {
		http.Error(w, "at least one from parameter is required", http.StatusBadRequest)
		return
	}

	resp := DistancesResponse{
		Selected:  selected,
		Distances: lens.ComputeDistances(snap.Document(), selected),
	}
	if raw := query.Get("max"); raw != "" {
		maxDistance, err := strconv.Atoi(raw)
		if err != nil || maxDistance < 0 {
			http.Error(w, fmt.Sprintf("invalid max: %q", raw), http.StatusBadRequest)
			return
		}
		resp.Within = lens.Within(resp.Distances, maxDistance)
		if resp.Within == nil {
			resp.Within = []string{}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCanvas binds the canvas on first call; later calls update the
// viewport of the bound canvas.
func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	vp := model.Viewport{Zoom: 1}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &vp) {
			return
		}
	}

	s.canvasMu.Lock()
	defer s.canvasMu.Unlock()

	if s.canvas != nil {
		s.canvas.SetViewport(vp)
		logging.TraceContext(r.Context(), "viewport updated", "x", vp.X, "y", vp.Y, "zoom", vp.Zoom)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	canvas := machine.NewViewportCanvas(vp)
	if !s.send(w, r, machine.SetCanvas{Canvas: canvas}) {
		return
	}
	s.canvas = canvas
	logging.InfoContext(r.Context(), "canvas ready", "zoom", vp.Zoom)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Node.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to generate node id: %v", err), http.StatusInternalServerError)
			return
		}
		req.Node.ID = id
	}
	if req.Node.Data == nil {
		req.Node.Data = map[string]any{}
	}

	if !s.send(w, r, machine.AddNode{Node: req.Node, Point: req.Point}) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": req.Node.ID})
}

func (s *Server) handleNodeChanges(w http.ResponseWriter, r *http.Request) {
	var changes []model.NodeChange
	if !decodeJSON(w, r, &changes) {
		return
	}
	for i, c := range changes {
		if err := c.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("change %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}
	if s.send(w, r, machine.ChangeNodes{Changes: changes}) {
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleSetNodes(w http.ResponseWriter, r *http.Request) {
	var nodes []model.Node
	if !decodeJSON(w, r, &nodes) {
		return
	}
	if s.send(w, r, machine.SetNodes{Nodes: nodes}) {
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleNodeColor(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["id"]

	var req colorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	actor, ok := s.machine.Actor(nodeID)
	if !ok {
		http.Error(w, fmt.Sprintf("node not found: %s", nodeID), http.StatusNotFound)
		return
	}
	if err := actor.Send(machine.ColorChanged{Color: req.Color}); err != nil {
		logging.WarnContext(r.Context(), "color change rejected", "node", nodeID, "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleEdgeChanges(w http.ResponseWriter, r *http.Request) {
	var changes []model.EdgeChange
	if !decodeJSON(w, r, &changes) {
		return
	}
	for i, c := range changes {
		if err := c.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("change %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}
	if s.send(w, r, machine.ChangeEdges{Changes: changes}) {
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleSetEdges(w http.ResponseWriter, r *http.Request) {
	var edges []model.Edge
	if !decodeJSON(w, r, &edges) {
		return
	}
	if s.send(w, r, machine.SetEdges{Edges: edges}) {
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var conn model.Connection
	if !decodeJSON(w, r, &conn) {
		return
	}
	if conn.Source == "" || conn.Target == "" {
		http.Error(w, "source and target are required", http.StatusBadRequest)
		return
	}
	if s.send(w, r, machine.Connect{Connection: conn}) {
		w.WriteHeader(http.StatusAccepted)
	}
}

// send posts ev to the machine, answering 503 if it has stopped
func (s *Server) send(w http.ResponseWriter, r *http.Request, ev machine.Event) bool {
	if err := s.machine.Send(ev); err != nil {
		logging.WarnContext(r.Context(), "event rejected", "event", ev.EventType(), "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return false
	}
	logging.TraceContext(r.Context(), "event sent", "event", ev.EventType())
	return true
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting canvas host", "url", fmt.Sprintf("http://%s", ln.Addr()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down canvas host")
	// Ends open SSE streams so Shutdown does not wait on them
	s.publisher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down canvas host: %w", err)
	}
	return nil
}

func hasGraph(snap machine.Snapshot) bool {
	switch snap.State {
	case machine.StateLoadStore, machine.StateFailed:
		return false
	default:
		return true
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to write response", "error", err)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
