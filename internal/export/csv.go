// Package export writes run results as CSV sheets, charts, plots and a PDF
// report.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/sim"
)

// IncidentHeader is the column order of incidents.csv.
var IncidentHeader = []string{
	"id", "tick", "time", "day", "vehicle_id", "vehicle_type", "direction",
	"kind", "position", "occupants", "injuries", "material_loss", "cargo_loss", "cause",
}

// HistoryHeader is the column order of history.csv.
var HistoryHeader = []string{
	"time", "day", "vehicle_count", "average_speed", "total_cost", "rain", "risk",
}

// ErrBadHeader is returned when a CSV file does not start with the expected
// header row.
var ErrBadHeader = errors.New("unexpected CSV header")

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
func formatUint(u uint64) string   { return strconv.FormatUint(u, 10) }

// WriteIncidentsCSV writes the incident log with a header row. Values are
// written at full precision so ReadIncidentsCSV restores them exactly.
func WriteIncidentsCSV(w io.Writer, incidents []sim.IncidentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(IncidentHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range incidents {
		dir, _ := r.Direction.MarshalText()
		row := []string{
			formatUint(r.ID),
			formatUint(r.Tick),
			r.Time.Format(time.RFC3339Nano),
			strconv.Itoa(r.Day),
			formatUint(r.VehicleID),
			string(r.VehicleType),
			string(dir),
			string(r.Kind),
			formatFloat(r.Position),
			strconv.Itoa(r.Occupants),
			strconv.Itoa(r.Injuries),
			formatFloat(r.MaterialLoss),
			formatFloat(r.CargoLoss),
			r.Cause,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write incident %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadIncidentsCSV parses a file written by WriteIncidentsCSV.
func ReadIncidentsCSV(r io.Reader) ([]sim.IncidentRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(IncidentHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read incidents: %w", err)
	}
	if err := checkHeader(rows, IncidentHeader); err != nil {
		return nil, err
	}
	out := make([]sim.IncidentRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseIncident(row)
		if err != nil {
			return nil, fmt.Errorf("incidents row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func checkHeader(rows [][]string, want []string) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: empty file", ErrBadHeader)
	}
	for i, col := range want {
		if rows[0][i] != col {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, rows[0][i], col)
		}
	}
	return nil
}

// fieldParser accumulates the first parse error so rows can be decoded
// without checking every field.
type fieldParser struct {
	row []string
	err error
}

func (p *fieldParser) u64(i int) uint64 {
	v, err := strconv.ParseUint(p.row[i], 10, 64)
	p.fail(i, err)
	return v
}

func (p *fieldParser) integer(i int) int {
	v, err := strconv.Atoi(p.row[i])
	p.fail(i, err)
	return v
}

func (p *fieldParser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.row[i], 64)
	p.fail(i, err)
	return v
}

func (p *fieldParser) timestamp(i int) time.Time {
	v, err := time.Parse(time.RFC3339Nano, p.row[i])
	p.fail(i, err)
	return v
}

func (p *fieldParser) fail(i int, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %d: %w", i, err)
	}
}

func parseIncident(row []string) (sim.IncidentRecord, error) {
	p := &fieldParser{row: row}
	rec := sim.IncidentRecord{
		ID:           p.u64(0),
		Tick:         p.u64(1),
		Time:         p.timestamp(2),
		Day:          p.integer(3),
		VehicleID:    p.u64(4),
		VehicleType:  scenario.Kind(row[5]),
		Kind:         sim.IncidentKind(row[7]),
		Position:     p.float(8),
		Occupants:    p.integer(9),
		Injuries:     p.integer(10),
		MaterialLoss: p.float(11),
		CargoLoss:    p.float(12),
		Cause:        row[13],
	}
	p.fail(6, rec.Direction.UnmarshalText([]byte(row[6])))
	return rec, p.err
}

// WriteHistoryCSV writes the history log with a header row.
func WriteHistoryCSV(w io.Writer, history []sim.HistorySample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, h := range history {
		row := []string{
			h.Time.Format(time.RFC3339Nano),
			strconv.Itoa(h.Day),
			strconv.Itoa(h.VehicleCount),
			formatFloat(h.AverageSpeed),
			formatFloat(h.TotalCost),
			formatFloat(h.Rain),
			formatFloat(h.Risk),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write history sample: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHistoryCSV parses a file written by WriteHistoryCSV.
func ReadHistoryCSV(r io.Reader) ([]sim.HistorySample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(HistoryHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if err := checkHeader(rows, HistoryHeader); err != nil {
		return nil, err
	}
	out := make([]sim.HistorySample, 0, len(rows)-1)
	for i, row := range rows[1:] {
		p := &fieldParser{row: row}
		h := sim.HistorySample{
			Time:         p.timestamp(0),
			Day:          p.integer(1),
			VehicleCount: p.integer(2),
			AverageSpeed: p.float(3),
			TotalCost:    p.float(4),
			Rain:         p.float(5),
			Risk:         p.float(6),
		}
		if p.err != nil {
			return nil, fmt.Errorf("history row %d: %w", i+2, p.err)
		}
		out = append(out, h)
	}
	return out, nil
}

// WriteSummaryCSV writes the summary sheet as metric,value rows.
func WriteSummaryCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"metric", "value"}}
	for _, m := range s.Metrics() {
		rows = append(rows, []string{m.Name, formatFloat(m.Value)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
