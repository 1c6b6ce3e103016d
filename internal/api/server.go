// Package api serves a live simulation over HTTP: snapshots, logs and
// exports for readers, and a control endpoint that forwards commands to the
// runner.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/bottleneck/internal/db"
	"github.com/banshee-data/bottleneck/internal/monitoring"
	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/stream"
	"github.com/banshee-data/bottleneck/internal/timeutil"
	"github.com/banshee-data/bottleneck/internal/units"
)

var logf = monitoring.Tagged("api")

// ANSI escape codes for the access log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// DefaultAlertTTL is how long an alert stays visible after its incident.
const DefaultAlertTTL = 5 * time.Second

// Server exposes one runner. The archive is optional.
type Server struct {
	runner   *runner.Runner
	archive  *db.DB
	stream   *stream.Hub
	units    string
	alertTTL time.Duration
	clock    timeutil.Clock
}

// Option configures a Server.
type Option func(*Server)

// WithArchive enables the run archive endpoints.
func WithArchive(archive *db.DB) Option {
	return func(s *Server) { s.archive = archive }
}

// WithStream serves hub at /api/stream. The hub must be fed by the runner's
// OnTick callback.
func WithStream(hub *stream.Hub) Option {
	return func(s *Server) { s.stream = hub }
}

// WithClock sets the clock used to stamp generated reports.
func WithClock(c timeutil.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithAlertTTL overrides DefaultAlertTTL.
func WithAlertTTL(d time.Duration) Option {
	return func(s *Server) { s.alertTTL = d }
}

// NewServer returns a Server reporting speeds in units by default. Invalid
// units fall back to km/h.
func NewServer(r *runner.Runner, defaultUnits string, opts ...Option) *Server {
	if !units.IsValid(defaultUnits) {
		defaultUnits = units.KMPH
	}
	s := &Server{runner: r, units: defaultUnits, alertTTL: DefaultAlertTTL, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
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

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", s.showSnapshot)
	mux.HandleFunc("/api/incidents", s.listIncidents)
	mux.HandleFunc("/api/incidents.csv", s.downloadIncidents)
	mux.HandleFunc("/api/history", s.listHistory)
	mux.HandleFunc("/api/history.csv", s.downloadHistory)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/chart", s.showChart)
	mux.HandleFunc("/api/report.pdf", s.downloadReport)
	mux.HandleFunc("/api/control", s.control)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/config", s.showConfig)
	if s.stream != nil {
		mux.Handle("/api/stream", s.stream)
	}
	if s.archive != nil {
		mux.HandleFunc("/api/archive", s.archiveRun)
		mux.HandleFunc("/api/runs", s.listRuns)
		mux.HandleFunc("/api/runs/{id}", s.showRun)
	}
	return mux
}
