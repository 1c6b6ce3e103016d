package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/sim"
)

var day1 = time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot() sim.Snapshot {
	return sim.Snapshot{
		Tick:     2400,
		Scenario: "real",
		Clock:    sim.ClockView{SimulatedTime: day1.Add(time.Hour), DayCount: 1},
		Stats: sim.Stats{
			TotalCost:      5120.75,
			FuelCost:       900.5,
			DelayCost:      3000.25,
			CargoCost:      20,
			IncidentCost:   1200,
			RunMeanSpeed:   31.5,
			Throughput:     57,
			CrashCount:     1,
			BreakdownCount: 1,
			NearMisses:     4,
		},
		IncidentLog: []sim.IncidentRecord{
			{
				ID: 1, Tick: 800, Time: day1.Add(20 * time.Minute), Day: 1,
				VehicleID: 12, VehicleType: scenario.Car, Direction: sim.Uphill,
				Kind: sim.IncidentRearEnd, Position: 341.5, Occupants: 3, Injuries: 1,
				MaterialLoss: 1200, Cause: "rear-end collision in queue",
			},
			{
				ID: 2, Tick: 1600, Time: day1.Add(40*time.Minute + 125*time.Millisecond), Day: 1,
				VehicleID: 19, VehicleType: scenario.Truck, Direction: sim.Downhill,
				Kind: sim.IncidentBreakdown, Position: 702, Occupants: 1,
				CargoLoss: 310.25, Cause: "brake failure on the descent",
			},
		},
		HistoryLog: []sim.HistorySample{
			{Time: day1, Day: 1, VehicleCount: 4, AverageSpeed: 38.5, TotalCost: 0, Rain: 0, Risk: 18},
			{Time: day1.Add(10 * time.Minute), Day: 1, VehicleCount: 9, AverageSpeed: 22.25, TotalCost: 640.5, Rain: 0, Risk: 21.75},
		},
	}
}

func TestNewDBAppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	latest, err := LatestMigrationVersion()
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("latest embedded migration = %d, want 2", latest)
	}
	if version != latest || dirty {
		t.Errorf("version = %d dirty = %v, want %d clean", version, dirty, latest)
	}

	// Reopening an up-to-date archive is a no-op.
	again, err := NewDB(db.path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	again.Close()
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busyTimeout)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cfg := sim.DefaultConfig()
	cfg.Seed = 99
	cfg.RainIntensity = 3.5
	snap := testSnapshot()
	if err := db.SaveRun(ctx, "run-1", cfg, snap); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	rec, err := db.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Scenario != "real" || rec.Seed != 99 || rec.Ticks != 2400 || rec.Days != 1 {
		t.Errorf("unexpected run header: %+v", rec)
	}
	if diff := cmp.Diff(cfg, rec.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(snap.Stats, rec.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set by the archive")
	}

	incidents, err := db.Incidents(ctx, "run-1")
	if err != nil {
		t.Fatalf("Incidents failed: %v", err)
	}
	if diff := cmp.Diff(snap.IncidentLog, incidents); diff != "" {
		t.Errorf("incidents mismatch (-want +got):\n%s", diff)
	}

	history, err := db.History(ctx, "run-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if diff := cmp.Diff(snap.HistoryLog, history); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRunReplacesExisting(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cfg := sim.DefaultConfig()

	snap := testSnapshot()
	if err := db.SaveRun(ctx, "run-1", cfg, snap); err != nil {
		t.Fatalf("first SaveRun failed: %v", err)
	}
	snap.IncidentLog = snap.IncidentLog[:1]
	snap.HistoryLog = nil
	snap.Tick = 3000
	if err := db.SaveRun(ctx, "run-1", cfg, snap); err != nil {
		t.Fatalf("second SaveRun failed: %v", err)
	}

	rec, err := db.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Ticks != 3000 {
		t.Errorf("Ticks = %d, want 3000", rec.Ticks)
	}
	incidents, _ := db.Incidents(ctx, "run-1")
	if len(incidents) != 1 {
		t.Errorf("got %d incidents, want 1", len(incidents))
	}
	history, _ := db.History(ctx, "run-1")
	if len(history) != 0 {
		t.Errorf("got %d history samples, want 0", len(history))
	}
}

func TestRunNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Run(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Run: expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.Incidents(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Incidents: expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.History(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("History: expected ErrRunNotFound, got %v", err)
	}
	if err := db.DeleteRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("DeleteRun: expected ErrRunNotFound, got %v", err)
	}
}

func TestRunsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cfg := sim.DefaultConfig()

	for _, id := range []string{"a", "b", "c"} {
		if err := db.SaveRun(ctx, id, cfg, testSnapshot()); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	all, err := db.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	limited, err := db.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("Runs(2) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d runs with limit 2", len(limited))
	}

	if err := db.DeleteRun(ctx, "b"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	var orphans int
	if err := db.QueryRow(`SELECT COUNT(*) FROM incidents WHERE run_id = 'b'`).Scan(&orphans); err != nil {
		t.Fatalf("count incidents: %v", err)
	}
	if orphans != 0 {
		t.Errorf("deleting a run left %d incidents behind", orphans)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}
	if _, err := db.Exec(`SELECT COUNT(*) FROM history`); err == nil {
		t.Error("history table should be gone after rolling back")
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.SaveRun(context.Background(), "after", sim.DefaultConfig(), testSnapshot()); err != nil {
		t.Fatalf("SaveRun after re-migrating failed: %v", err)
	}
}

func TestAttachAdminRoutes(t *testing.T) {
	db := setupTestDB(t)
	if err := db.SaveRun(context.Background(), "run-1", sim.DefaultConfig(), testSnapshot()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	for _, path := range []string{"/debug/runs", "/debug/backup", "/debug/tailsql/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:40000"
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code == http.StatusNotFound {
			t.Errorf("%s not registered", path)
		}
		if w.Code == http.StatusInternalServerError {
			t.Errorf("%s returned 500: %s", path, w.Body.String())
		}
		if path == "/debug/runs" && w.Code == http.StatusOK {
			var runs []RunRecord
			if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
				t.Errorf("decode runs: %v", err)
			}
			if len(runs) != 1 || runs[0].RunID != "run-1" {
				t.Errorf("unexpected runs listing: %+v", runs)
			}
		}
	}
}
