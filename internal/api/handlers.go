package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/bottleneck/internal/db"
	"github.com/banshee-data/bottleneck/internal/export"
	"github.com/banshee-data/bottleneck/internal/httputil"
	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/security"
	"github.com/banshee-data/bottleneck/internal/sim"
	"github.com/banshee-data/bottleneck/internal/units"
	"github.com/banshee-data/bottleneck/internal/version"
)

// SnapshotResponse is the body of GET /api/snapshot. Speeds are in Units.
type SnapshotResponse struct {
	sim.Snapshot
	RunID  string `json:"run_id"`
	Units  string `json:"units"`
	Paused bool   `json:"paused"`
}

// ControlResponse is the body of a successful POST /api/control.
type ControlResponse struct {
	Action runner.Action `json:"action"`
	Tick   uint64        `json:"tick"`
	Paused bool          `json:"paused"`
}

// VersionResponse is the body of GET /api/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// ConfigResponse is the body of GET /api/config.
type ConfigResponse struct {
	RunID    string            `json:"run_id"`
	Scenario scenario.Scenario `json:"scenario"`
	Config   sim.Config        `json:"config"`
	Units    string            `json:"units"`
	Interval string            `json:"interval"`
	AlertTTL string            `json:"alert_ttl"`
	Archive  bool              `json:"archive"`
}

// RunResponse is the body of GET /api/runs/{id}.
type RunResponse struct {
	Run       db.RunRecord         `json:"run"`
	Incidents []sim.IncidentRecord `json:"incidents"`
	History   []sim.HistorySample  `json:"history"`
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return false
	}
	return true
}

func (s *Server) showSnapshot(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	u := s.units
	if q := r.URL.Query().Get("units"); q != "" {
		if !units.IsValid(q) {
			httputil.BadRequest(w, "invalid 'units' parameter, want one of: "+units.GetValidUnitsString())
			return
		}
		u = q
	}

	snap := s.runner.Latest()
	snap.ActiveAlert = s.visibleAlert(snap.ActiveAlert, snap.Tick)
	snap.BreakdownAlert = s.visibleAlert(snap.BreakdownAlert, snap.Tick)
	httputil.WriteJSONOK(w, SnapshotResponse{
		Snapshot: convertSnapshot(snap, u),
		RunID:    s.runner.ID(),
		Units:    u,
		Paused:   s.runner.Paused(),
	})
}

// visibleAlert hides alerts older than the TTL. Alert age is measured in
// ticks, each worth one runner interval of wall time.
func (s *Server) visibleAlert(a *sim.Alert, tick uint64) *sim.Alert {
	if a == nil || tick < a.Tick {
		return a
	}
	age := time.Duration(tick-a.Tick) * s.runner.Interval()
	if age >= s.alertTTL {
		return nil
	}
	return a
}

// convertSnapshot converts every speed in snap to target units. The slices
// are copied so the runner's snapshot is never modified.
func convertSnapshot(snap sim.Snapshot, target string) sim.Snapshot {
	vehicles := make([]sim.VehicleView, len(snap.Vehicles))
	for i, v := range snap.Vehicles {
		v.Velocity = units.ConvertSpeed(v.Velocity, target)
		v.Acceleration = units.ConvertSpeed(v.Acceleration, target)
		vehicles[i] = v
	}
	snap.Vehicles = vehicles

	history := make([]sim.HistorySample, len(snap.HistoryLog))
	for i, h := range snap.HistoryLog {
		h.AverageSpeed = units.ConvertSpeed(h.AverageSpeed, target)
		history[i] = h
	}
	snap.HistoryLog = history

	snap.Stats.AverageSpeed = units.ConvertSpeed(snap.Stats.AverageSpeed, target)
	snap.Stats.RunMeanSpeed = units.ConvertSpeed(snap.Stats.RunMeanSpeed, target)
	snap.Stats.RunSpeedStdev = units.ConvertSpeed(snap.Stats.RunSpeedStdev, target)
	return snap
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	httputil.WriteJSONOK(w, nonNil(s.runner.Latest().IncidentLog))
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	httputil.WriteJSONOK(w, nonNil(s.runner.Latest().HistoryLog))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	httputil.WriteJSONOK(w, export.Summarize(s.runner.Latest()))
}

func (s *Server) downloadIncidents(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	incidents := s.runner.Latest().IncidentLog
	s.writeFile(w, "text/csv", "incidents.csv", func(out io.Writer) error {
		return export.WriteIncidentsCSV(out, incidents)
	})
}

func (s *Server) downloadHistory(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	history := s.runner.Latest().HistoryLog
	s.writeFile(w, "text/csv", "history.csv", func(out io.Writer) error {
		return export.WriteHistoryCSV(out, history)
	})
}

func (s *Server) downloadReport(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	snap := s.runner.Latest()
	info := export.ReportInfo{RunID: s.runner.ID(), Generated: s.clock.Now()}
	s.writeFile(w, "application/pdf", "report.pdf", func(out io.Writer) error {
		return export.WritePDFReport(out, info, snap)
	})
}

// writeFile renders into a buffer so a render error can still be reported
// as JSON, then sends it as a download named after the run.
func (s *Server) writeFile(w http.ResponseWriter, contentType, name string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render %s: %v", name, err))
		return
	}
	httputil.SetAttachment(w, contentType, security.SanitizeFilename(s.runner.ID())+"-"+name)
	if _, err := buf.WriteTo(w); err != nil {
		logf("write %s: %v", name, err)
	}
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	snap := s.runner.Latest()
	title := fmt.Sprintf("%s (%s)", s.runner.ID(), snap.Scenario)

	var buf bytes.Buffer
	if err := export.RenderHistoryChart(&buf, title, snap.HistoryLog); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		logf("write chart: %v", err)
	}
}

func (s *Server) control(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	action, err := runner.ParseAction(r.FormValue("action"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	cmd := runner.Command{Action: action}
	if action == runner.ActionTimeScale {
		v, err := strconv.ParseFloat(r.FormValue("value"), 64)
		if err != nil {
			httputil.BadRequest(w, "invalid 'value' parameter for time_scale")
			return
		}
		cmd.Value = v
	}

	if err := s.runner.Send(r.Context(), cmd); err != nil {
		var ce *sim.ConfigurationError
		switch {
		case errors.As(err, &ce):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, runner.ErrNotRunning):
			httputil.ServiceUnavailable(w, err.Error())
		default:
			httputil.InternalServerError(w, err.Error())
		}
		return
	}
	httputil.WriteJSONOK(w, ControlResponse{
		Action: action,
		Tick:   s.runner.Latest().Tick,
		Paused: s.runner.Paused(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	httputil.WriteJSONOK(w, VersionResponse{
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		BuildTime: version.BuildTime,
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	httputil.WriteJSONOK(w, ConfigResponse{
		RunID:    s.runner.ID(),
		Scenario: s.runner.Scenario(),
		Config:   s.runner.Config(),
		Units:    s.units,
		Interval: s.runner.Interval().String(),
		AlertTTL: s.alertTTL.String(),
		Archive:  s.archive != nil,
	})
}

func (s *Server) archiveRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	id := s.runner.ID()
	if err := s.archive.SaveRun(r.Context(), id, s.runner.Config(), s.runner.Latest()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to archive run: %v", err))
		return
	}
	logf("archived run %s", id)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"run_id": id})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.archive.Runs(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, nonNil(runs))
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	id := r.PathValue("id")
	rec, err := s.archive.Run(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	incidents, err := s.archive.Incidents(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	history, err := s.archive.History(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, RunResponse{Run: rec, Incidents: incidents, History: history})
}
