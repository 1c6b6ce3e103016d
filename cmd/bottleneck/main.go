package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/banshee-data/bottleneck/internal/api"
	"github.com/banshee-data/bottleneck/internal/db"
	"github.com/banshee-data/bottleneck/internal/export"
	"github.com/banshee-data/bottleneck/internal/runner"
	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/security"
	"github.com/banshee-data/bottleneck/internal/version"
)

// ticksPerDay is one simulated day at time scale 1.
const ticksPerDay = 4 * 60 * 24

var versionFlag = flag.Bool("version", false, "Print version information and exit")

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *versionFlag {
		printVersion(os.Stdout)
		return
	}
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, command string, args []string, stdout io.Writer) error {
	switch command {
	case "run":
		return handleRun(ctx, args, stdout)
	case "compare":
		return handleCompare(ctx, args, stdout)
	case "serve":
		return handleServe(ctx, args)
	case "ctl":
		return handleCtl(ctx, args, stdout)
	case "migrate":
		return handleMigrate(args, stdout)
	case "version":
		printVersion(stdout)
		return nil
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "bottleneck %s (git %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
}

func printUsage() {
	fmt.Println(`bottleneck - reversible passage traffic simulator

Usage: bottleneck <command> [options]

Commands:
  run        Run one scenario headless and write its exports
  compare    Run two scenarios with the same seed and compare them
  serve      Run a live simulation behind the HTTP API
  ctl        Send a command to a running server
  migrate    Apply or roll back the run archive schema
  version    Show version information
  help       Show this help message

Run Flags (run, compare, serve):
  --config <file>      JSON run configuration
  --scenario <id>      ideal, real or chaos
  --start HH:MM        Simulated start time
  --rain <0-10>        Rain intensity
  --overtaking         Allow overtaking (default true)
  --time-scale <x>     Simulated time multiplier
  --seed <n>           Random seed
  --strict             Panic on invariant violations

Examples:
  # One simulated day of the real scenario, exported to ./out
  bottleneck run --scenario real --ticks 5760 --out ./out

  # Ideal against chaos in the rain, archived
  bottleneck compare --a ideal --b chaos --rain 6 --db runs.db

  # Live server with the archive and admin routes
  bottleneck serve --listen :8080 --db runs.db

  # Speed up a running server
  bottleneck ctl --addr http://localhost:8080 time_scale 4`)
}

func handleRun(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := registerSimFlags(fs)
	ticks := fs.Int("ticks", ticksPerDay, "Number of ticks to simulate")
	runID := fs.String("id", "", "Run identifier (default: random)")
	outDir := fs.String("out", "", "Directory to write the export bundle into")
	dbPath := fs.String("db", "", "Archive the run into this SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, sc, err := sf.resolve()
	if err != nil {
		return err
	}
	if *outDir != "" {
		if err := security.ValidateOutputPath(*outDir); err != nil {
			return err
		}
	}
	id := *runID
	if id == "" {
		id = uuid.NewString()
	}

	res, err := runner.RunHeadless(ctx, id, cfg, sc, *ticks)
	if err != nil && res.Ticks == 0 {
		return err
	}
	if err != nil {
		log.Printf("run %s interrupted after %d ticks: %v", id, res.Ticks, err)
	}

	printSummary(stdout, id, export.Summarize(res.Final))

	if *outDir != "" {
		paths, err := export.Bundle{Dir: *outDir}.WriteRun(id, res.Final)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(stdout, "wrote %s\n", p)
		}
	}
	if *dbPath != "" {
		if err := archive(ctx, *dbPath, res); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "archived run %s to %s\n", id, *dbPath)
	}
	return nil
}

func handleCompare(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	sf := registerSimFlags(fs)
	a := fs.String("a", "ideal", "First scenario")
	b := fs.String("b", "real", "Second scenario")
	ticks := fs.Int("ticks", ticksPerDay, "Number of ticks to simulate per scenario")
	runID := fs.String("id", "", "Comparison identifier (default: random)")
	outDir := fs.String("out", "", "Directory to write both bundles and the comparison chart into")
	dbPath := fs.String("db", "", "Archive both runs into this SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := sf.resolve()
	if err != nil {
		return err
	}
	if *outDir != "" {
		if err := security.ValidateOutputPath(*outDir); err != nil {
			return err
		}
	}
	sa, err := scenario.ByID(*a)
	if err != nil {
		return err
	}
	sb, err := scenario.ByID(*b)
	if err != nil {
		return err
	}
	id := *runID
	if id == "" {
		id = uuid.NewString()
	}

	cmp, err := runner.Compare(ctx, id, cfg, sa, sb, *ticks)
	if err != nil {
		return err
	}

	printSummary(stdout, cmp.A.RunID, export.Summarize(cmp.A.Final))
	printSummary(stdout, cmp.B.RunID, export.Summarize(cmp.B.Final))
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\n%s - %s\n", sb.ID, sa.ID)
	fmt.Fprintf(tw, "total_cost\t%+.2f\n", cmp.CostDelta)
	fmt.Fprintf(tw, "run_mean_speed\t%+.2f\n", cmp.SpeedDelta)
	fmt.Fprintf(tw, "incidents\t%+d\n", cmp.IncidentDelta)
	fmt.Fprintf(tw, "throughput\t%+d\n", cmp.ThroughputDelta)
	if err := tw.Flush(); err != nil {
		return err
	}

	if *outDir != "" {
		paths, err := export.Bundle{Dir: *outDir}.WriteComparison(cmp)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(stdout, "wrote %s\n", p)
		}
	}
	if *dbPath != "" {
		for _, res := range []runner.Result{cmp.A, cmp.B} {
			if err := archive(ctx, *dbPath, res); err != nil {
				return err
			}
		}
		fmt.Fprintf(stdout, "archived runs %s and %s to %s\n", cmp.A.RunID, cmp.B.RunID, *dbPath)
	}
	return nil
}

func archive(ctx context.Context, path string, res runner.Result) error {
	store, err := db.NewDB(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()
	if err := store.SaveRun(ctx, res.RunID, res.Config, res.Final); err != nil {
		return fmt.Errorf("archive run %s: %w", res.RunID, err)
	}
	return nil
}

func printSummary(w io.Writer, runID string, s export.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", runID)
	fmt.Fprintf(tw, "scenario\t%s\n", s.Scenario)
	for _, m := range s.Metrics() {
		fmt.Fprintf(tw, "%s\t%s\n", m.Name, strconv.FormatFloat(m.Value, 'f', 2, 64))
	}
	tw.Flush()
}

func handleCtl(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server base URL")
	units := fs.String("units", "", "Speed units for snapshot (default: server setting)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("ctl needs a command: pause, resume, reset, step, time_scale <x>, snapshot, summary, archive, version")
	}
	return runCtl(ctx, api.NewClient(*addr), fs.Args(), *units, stdout)
}

func runCtl(ctx context.Context, c *api.Client, args []string, units string, stdout io.Writer) error {
	var (
		out any
		err error
	)
	switch args[0] {
	case "snapshot":
		out, err = c.Snapshot(ctx, units)
	case "summary":
		out, err = c.Summary(ctx)
	case "version":
		out, err = c.Version(ctx)
	case "archive":
		var id string
		id, err = c.Archive(ctx)
		out = map[string]string{"run_id": id}
	default:
		action, perr := runner.ParseAction(args[0])
		if perr != nil {
			return perr
		}
		var value float64
		if action == runner.ActionTimeScale {
			if len(args) < 2 {
				return errors.New("time_scale needs a value")
			}
			if value, err = strconv.ParseFloat(args[1], 64); err != nil {
				return fmt.Errorf("invalid time scale %q: %w", args[1], err)
			}
		}
		out, err = c.Control(ctx, action, value)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func handleMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", "", "SQLite database path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return errors.New("--db is required")
	}
	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	store, err := db.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "up":
		err = store.MigrateUp()
	case "down":
		err = store.MigrateDown()
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q, want up, down or version", action)
	}
	if err != nil {
		return err
	}

	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d of %d (dirty=%t)\n", v, latest, dirty)
	return nil
}
