package network

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// StatusServer exposes the worker's health and statistics over HTTP
type StatusServer struct {
	port       int
	mux        *http.ServeMux
	workerName string
	server     *http.Server

	StatsHandler http.HandlerFunc
	FleetHandler http.HandlerFunc
}

func NewStatusServer(workerName string, port int) *StatusServer {
	mux := http.NewServeMux()

	statusServer := &StatusServer{
		workerName: workerName,
		port:       port,
		mux:        mux,
		server: &http.Server{
			Addr:    ":" + strconv.Itoa(port),
			Handler: mux,
		},
	}

	statusServer.setupRoutes()
	return statusServer
}

// setupRoutes configures basic HTTP routes
func (s *StatusServer) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStatsWrapper)
	s.mux.HandleFunc("/fleet", s.handleFleetWrapper)
}

// Start launches the status server and blocks until it stops
func (s *StatusServer) Start() error {
	log.Printf("[STATUS] Server started on port %d", s.port)
	return s.server.ListenAndServe()
}

// Stop shuts down the status server
func (s *StatusServer) Stop() error {
	log.Printf("[STATUS] Stopping server on port %d", s.port)
	return s.server.Close()
}

// handleHealth provides a basic health-check endpoint
func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"worker_name": s.workerName,
		"status":      "healthy",
		"port":        s.port,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *StatusServer) handleStatsWrapper(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Message-Type", "STATS")
	w.Header().Set("X-Worker-Name", s.workerName)
	if s.StatsHandler != nil {
		s.StatsHandler(w, r)
	} else {
		s.sendNotImplemented(w, "Stats handler")
	}
}

func (s *StatusServer) handleFleetWrapper(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Message-Type", "FLEET")
	w.Header().Set("X-Worker-Name", s.workerName)
	if s.FleetHandler != nil {
		s.FleetHandler(w, r)
	} else {
		s.sendNotImplemented(w, "Fleet handler")
	}
}

func (s *StatusServer) sendNotImplemented(w http.ResponseWriter, feature string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotImplemented)

	response := map[string]interface{}{
		"error":   "Not implemented",
		"feature": feature,
		"hint":    "enable the component that serves this endpoint",
	}

	json.NewEncoder(w).Encode(response)
}

// JSONHandler serves the map returned by provide on GET requests
func JSONHandler(provide func() map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(provide())
	}
}

// GetStats returns status server statistics
func (s *StatusServer) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"status_port": s.port,
		"worker_name": s.workerName,
	}
}
