// Package adminapi exposes an operator HTTP surface over the running world:
// aggregate metrics, per-agent navigation status, and a forced-recovery
// trigger. It is loopback-only; the public agent surface is the websocket
// endpoint.
package adminapi

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"

	"waymesh.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{world: w, log: logger}
}

// Register mounts the admin routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/metrics", s.guard(s.handleMetrics))
	mux.HandleFunc("/admin/agents/", s.guard(s.handleAgent))
}

func (s *Server) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, struct {
		Tick  uint64           `json:"tick"`
		Stats world.WorldStats `json:"stats"`
	}{Tick: s.world.CurrentTick(), Stats: s.world.Metrics()})
}

// handleAgent serves GET /admin/agents/{id} and POST /admin/agents/{id}/recover.
func (s *Server) handleAgent(rw http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/agents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(rw, r)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		st, ok := s.world.Query(id)
		if !ok {
			http.NotFound(rw, r)
			return
		}
		writeJSON(rw, st)
	case action == "recover" && r.Method == http.MethodPost:
		if !s.world.TriggerRecovery(id) {
			http.NotFound(rw, r)
			return
		}
		rw.WriteHeader(http.StatusAccepted)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(rw)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
