// Package api serves a live view of a localization session over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/gridloc/internal/localizer"
	"github.com/banshee-data/gridloc/internal/monitoring"
	"github.com/banshee-data/gridloc/internal/version"
	"github.com/banshee-data/gridloc/internal/viz"
	"tailscale.com/tsweb"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes one session. RunID is reported when the run is recorded.
type Server struct {
	session *localizer.Session
	mapName string
	runID   string
	started time.Time
}

func NewServer(session *localizer.Session, mapName, runID string) *Server {
	return &Server{
		session: session,
		mapName: mapName,
		runID:   runID,
		started: time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/estimate", s.showEstimate)
	mux.HandleFunc("/api/beliefs", s.showBeliefs)
	mux.HandleFunc("/api/heatmap", s.showHeatmap)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

// AttachDebugRoutes registers session summaries on the /debug/ index.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("version", version.String())
	debug.KV("map", s.mapName)
	if s.runID != "" {
		debug.KV("run", s.runID)
	}
	debug.KVFunc("steps", func() any { return s.session.Steps() })
	debug.KVFunc("entropy", func() any { return fmt.Sprintf("%.4f", s.session.Entropy()) })
	debug.KVFunc("uptime", func() any { return time.Since(s.started).Round(time.Second).String() })
	debug.HandleFunc("heatmap", "Belief heatmap", s.showHeatmap)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type estimateResponse struct {
	localizer.Estimate
	Steps   int     `json:"steps"`
	Entropy float64 `json:"entropy"`
	Rows    int     `json:"rows"`
	Cols    int     `json:"cols"`
}

func (s *Server) showEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	beliefs := s.session.Beliefs()
	rows, cols := beliefs.Dims()
	resp := estimateResponse{
		Estimate: localizer.MostLikely(beliefs),
		Steps:    s.session.Steps(),
		Entropy:  localizer.Entropy(beliefs),
		Rows:     rows,
		Cols:     cols,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write estimate")
	}
}

func (s *Server) showBeliefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	decimals := 3
	if d := r.URL.Query().Get("decimals"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 0 || parsed > 12 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'decimals' parameter")
			return
		}
		decimals = parsed
	}
	var buf bytes.Buffer
	if err := viz.WriteGrid(&buf, s.session.Beliefs(), decimals); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to render beliefs")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	beliefs := s.session.Beliefs()
	subtitle := fmt.Sprintf("map=%s steps=%d", s.mapName, s.session.Steps())

	var buf bytes.Buffer
	if err := viz.RenderHeatMapHTML(&buf, beliefs, "Beliefs", subtitle); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render heatmap chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type configResponse struct {
	Map      string  `json:"map"`
	RunID    string  `json:"run_id,omitempty"`
	PHit     float64 `json:"p_hit"`
	PMiss    float64 `json:"p_miss"`
	Blurring float64 `json:"blurring"`
	Version  string  `json:"version"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	cfg := s.session.Config()
	resp := configResponse{
		Map:      s.mapName,
		RunID:    s.runID,
		PHit:     cfg.Sensor.Hit,
		PMiss:    cfg.Sensor.Miss,
		Blurring: cfg.Blurring,
		Version:  version.String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
	}
}
