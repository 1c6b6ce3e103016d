package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/sim"
)

// RenderHistoryChart writes an HTML page with the history log as two line
// charts: traffic (vehicles, speed, risk) and cumulative cost.
func RenderHistoryChart(w io.Writer, title string, history []sim.HistorySample) error {
	x := make([]string, 0, len(history))
	vehicles := make([]opts.LineData, 0, len(history))
	speed := make([]opts.LineData, 0, len(history))
	risk := make([]opts.LineData, 0, len(history))
	cost := make([]opts.LineData, 0, len(history))
	for _, h := range history {
		x = append(x, fmt.Sprintf("D%d %s", h.Day, h.Time.Format("15:04")))
		vehicles = append(vehicles, opts.LineData{Value: h.VehicleCount})
		speed = append(speed, opts.LineData{Value: round2(h.AverageSpeed)})
		risk = append(risk, opts.LineData{Value: round2(h.Risk)})
		cost = append(cost, opts.LineData{Value: round2(h.TotalCost)})
	}

	traffic := charts.NewLine()
	traffic.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Traffic", Subtitle: fmt.Sprintf("%d samples", len(history))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	traffic.SetXAxis(x).
		AddSeries("vehicles", vehicles).
		AddSeries("avg speed (km/h)", speed).
		AddSeries("risk (%)", risk).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	costs := charts.NewLine()
	costs.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative cost"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	costs.SetXAxis(x).
		AddSeries("total cost", cost, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(traffic, costs)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render history chart: %w", err)
	}
	return nil
}

// RenderComparisonChart writes a bar chart of the headline numbers of two
// runs side by side.
func RenderComparisonChart(w io.Writer, c runner.Comparison) error {
	a, b := Summarize(c.A.Final), Summarize(c.B.Final)
	type row struct {
		label string
		a, b  float64
	}
	money := []row{
		{"fuel", a.Stats.FuelCost, b.Stats.FuelCost},
		{"delay", a.Stats.DelayCost, b.Stats.DelayCost},
		{"cargo", a.Stats.CargoCost, b.Stats.CargoCost},
		{"incidents", a.Stats.IncidentCost, b.Stats.IncidentCost},
		{"total", a.Stats.TotalCost, b.Stats.TotalCost},
	}
	flow := []row{
		{"mean speed", a.Stats.RunMeanSpeed, b.Stats.RunMeanSpeed},
		{"throughput", float64(a.Stats.Throughput), float64(b.Stats.Throughput)},
		{"crashes", float64(a.Stats.CrashCount), float64(b.Stats.CrashCount)},
		{"breakdowns", float64(a.Stats.BreakdownCount), float64(b.Stats.BreakdownCount)},
	}

	bars := func(title string, rows []row) *charts.Bar {
		labels := make([]string, 0, len(rows))
		da := make([]opts.BarData, 0, len(rows))
		db := make([]opts.BarData, 0, len(rows))
		for _, r := range rows {
			labels = append(labels, r.label)
			da = append(da, opts.BarData{Value: round2(r.a)})
			db = append(db, opts.BarData{Value: round2(r.b)})
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
			charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%s vs %s, %d ticks", c.A.Scenario.Name, c.B.Scenario.Name, c.A.Ticks)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(labels).
			AddSeries(c.A.Scenario.ID, da).
			AddSeries(c.B.Scenario.ID, db).
			SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
		return bar
	}

	page := components.NewPage()
	page.PageTitle = "Scenario comparison"
	page.AddCharts(bars("Cost", money), bars("Flow and safety", flow))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render comparison chart: %w", err)
	}
	return nil
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
