package export

import (
	"fmt"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/banshee-data/bottleneck/internal/sim"
)

// incidentColumns are the report table columns and their widths in mm.
var incidentColumns = []struct {
	title string
	width float64
	align string
}{
	{"Time", 28, "L"},
	{"Vehicle", 30, "L"},
	{"Cause", 70, "L"},
	{"Occupants", 20, "R"},
	{"Injured", 17, "R"},
	{"Loss", 25, "R"},
}

// ReportInfo labels the PDF report.
type ReportInfo struct {
	RunID     string
	Generated time.Time
}

// WritePDFReport writes an A4 report with the run summary and the incident
// table.
func WritePDFReport(w io.Writer, info ReportInfo, snap sim.Snapshot) error {
	s := Summarize(snap)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Incident report "+info.RunID, false)
	pdf.SetCreator("bottleneck", false)
	if !info.Generated.IsZero() {
		pdf.SetCreationDate(info.Generated)
		pdf.SetModificationDate(info.Generated)
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Incident report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Run %s, scenario %s, %d ticks, day %d at %s",
		info.RunID, snap.Scenario, snap.Tick, snap.Clock.DayCount, snap.Clock.SimulatedTime.Format("15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, m := range []struct {
		label string
		value string
	}{
		{"Total cost", money(s.Stats.TotalCost)},
		{"Fuel / delay / cargo", fmt.Sprintf("%s / %s / %s", money(s.Stats.FuelCost), money(s.Stats.DelayCost), money(s.Stats.CargoCost))},
		{"Incident losses", money(s.Stats.IncidentCost)},
		{"Crashes / breakdowns", fmt.Sprintf("%d / %d", s.Stats.CrashCount, s.Stats.BreakdownCount)},
		{"Injured", fmt.Sprintf("%d", s.Injuries)},
		{"Throughput", fmt.Sprintf("%d vehicles", s.Stats.Throughput)},
		{"Mean speed", fmt.Sprintf("%.1f km/h", s.Stats.RunMeanSpeed)},
	} {
		pdf.CellFormat(50, 6, m.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, m.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Incidents (%d)", len(snap.IncidentLog)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	for _, c := range incidentColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range snap.IncidentLog {
		cells := []string{
			fmt.Sprintf("D%d %s", r.Day, r.Time.Format("15:04")),
			fmt.Sprintf("%s #%d", r.VehicleType, r.VehicleID),
			r.Cause,
			fmt.Sprintf("%d", r.Occupants),
			fmt.Sprintf("%d", r.Injuries),
			money(r.TotalLoss()),
		}
		for i, c := range incidentColumns {
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(snap.IncidentLog) == 0 {
		pdf.CellFormat(0, 6, "No incidents recorded.", "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func money(v float64) string {
	return fmt.Sprintf("Q %.2f", v)
}
