package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/bottleneck/internal/fsutil"
	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/security"
	"github.com/banshee-data/bottleneck/internal/sim"
)

// Artifact file names inside a run directory.
const (
	IncidentsFile = "incidents.csv"
	HistoryFile   = "history.csv"
	SummaryFile   = "summary.csv"
	ReportFile    = "report.pdf"
	ChartFile     = "history.html"
	PlotFile      = "history.png"
	CompareFile   = "comparison.html"
)

// Bundle writes run artifacts below Dir.
type Bundle struct {
	FS  fsutil.FileSystem
	Dir string
	// Now stamps the PDF report; nil uses time.Now.
	Now func() time.Time
}

// RunDir is the directory the artifacts of runID are written to.
func (b Bundle) RunDir(runID string) string {
	return filepath.Join(b.Dir, security.SanitizeFilename(runID))
}

// WriteRun writes every artifact of one run and returns the paths written.
func (b Bundle) WriteRun(runID string, snap sim.Snapshot) ([]string, error) {
	dir := b.RunDir(runID)
	if err := b.fs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	title := fmt.Sprintf("%s (%s)", runID, snap.Scenario)
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{IncidentsFile, func(w io.Writer) error { return WriteIncidentsCSV(w, snap.IncidentLog) }},
		{HistoryFile, func(w io.Writer) error { return WriteHistoryCSV(w, snap.HistoryLog) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummaryCSV(w, Summarize(snap)) }},
		{ReportFile, func(w io.Writer) error {
			return WritePDFReport(w, ReportInfo{RunID: runID, Generated: now()}, snap)
		}},
		{ChartFile, func(w io.Writer) error { return RenderHistoryChart(w, title, snap.HistoryLog) }},
		{PlotFile, func(w io.Writer) error { return WriteHistoryPlot(w, title, snap.HistoryLog) }},
	}

	paths := make([]string, 0, len(writers))
	for _, wr := range writers {
		path := filepath.Join(dir, wr.name)
		if err := b.writeFile(path, wr.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteComparison writes both runs of c and the comparison chart.
func (b Bundle) WriteComparison(c runner.Comparison) ([]string, error) {
	var paths []string
	for _, r := range []runner.Result{c.A, c.B} {
		p, err := b.WriteRun(r.RunID, r.Final)
		paths = append(paths, p...)
		if err != nil {
			return paths, err
		}
	}
	if err := b.fs().MkdirAll(b.Dir, 0o755); err != nil {
		return paths, fmt.Errorf("create %s: %w", b.Dir, err)
	}
	path := filepath.Join(b.Dir, CompareFile)
	if err := b.writeFile(path, func(w io.Writer) error { return RenderComparisonChart(w, c) }); err != nil {
		return paths, err
	}
	return append(paths, path), nil
}

// writeFile renders into memory first so a failed render leaves no partial
// file behind.
func (b Bundle) writeFile(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	if err := b.fs().WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (b Bundle) fs() fsutil.FileSystem {
	if b.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return b.FS
}
