// Package db archives finished simulation runs in SQLite: the run summary,
// its incident log and its history samples.
package db

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/bottleneck/internal/scenario"
	"github.com/banshee-data/bottleneck/internal/sim"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// pragmas are applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(ON)",
}

type DB struct {
	*sql.DB
	path string
}

// OpenDB opens the archive without touching its schema.
func OpenDB(path string) (*DB, error) {
	dsn := path
	for i, p := range pragmas {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		dsn += sep + "_pragma=" + p
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{DB: conn, path: path}, nil
}

// NewDB opens the archive and applies any pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunRecord is one archived run.
type RunRecord struct {
	RunID     string     `json:"run_id"`
	Scenario  string     `json:"scenario"`
	Seed      int64      `json:"seed"`
	Ticks     uint64     `json:"ticks"`
	Days      int        `json:"days"`
	Config    sim.Config `json:"config"`
	Stats     sim.Stats  `json:"stats"`
	CreatedAt time.Time  `json:"created_at"`
}

// SaveRun stores the final snapshot of a run. Saving an existing run id
// replaces the earlier record and its logs.
func (db *DB) SaveRun(ctx context.Context, runID string, cfg sim.Config, snap sim.Snapshot) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Cascades to incidents and history.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear run %s: %w", runID, err)
	}
	st := snap.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, scenario, seed, ticks, days, config_json,
			total_cost, fuel_cost, delay_cost, cargo_cost, incident_cost,
			run_mean_speed, throughput, crash_count, breakdown_count, near_misses
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.Scenario, cfg.Seed, int64(snap.Tick), snap.Clock.DayCount, string(cfgJSON),
		st.TotalCost, st.FuelCost, st.DelayCost, st.CargoCost, st.IncidentCost,
		st.RunMeanSpeed, st.Throughput, st.CrashCount, st.BreakdownCount, st.NearMisses,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}

	if err := insertIncidents(ctx, tx, runID, snap.IncidentLog); err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, runID, snap.HistoryLog); err != nil {
		return err
	}
	return tx.Commit()
}

func insertIncidents(ctx context.Context, tx *sql.Tx, runID string, log []sim.IncidentRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO incidents (
			run_id, incident_id, tick, sim_time, day, vehicle_id, vehicle_type,
			direction, kind, position, occupants, injuries, material_loss, cargo_loss, cause
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range log {
		_, err := stmt.ExecContext(ctx,
			runID, int64(r.ID), int64(r.Tick), r.Time.Format(time.RFC3339Nano), r.Day,
			int64(r.VehicleID), string(r.VehicleType), r.Direction.String(), string(r.Kind),
			r.Position, r.Occupants, r.Injuries, r.MaterialLoss, r.CargoLoss, r.Cause,
		)
		if err != nil {
			return fmt.Errorf("insert incident %d: %w", r.ID, err)
		}
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, runID string, history []sim.HistorySample) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (
			run_id, seq, sim_time, day, vehicle_count, average_speed, total_cost, rain, risk
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, h := range history {
		_, err := stmt.ExecContext(ctx,
			runID, i, h.Time.Format(time.RFC3339Nano), h.Day, h.VehicleCount,
			h.AverageSpeed, h.TotalCost, h.Rain, h.Risk,
		)
		if err != nil {
			return fmt.Errorf("insert history sample %d: %w", i, err)
		}
	}
	return nil
}

const runColumns = `run_id, scenario, seed, ticks, days, config_json,
	total_cost, fuel_cost, delay_cost, cargo_cost, incident_cost,
	run_mean_speed, throughput, crash_count, breakdown_count, near_misses, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		r       RunRecord
		ticks   int64
		cfgJSON string
	)
	err := row.Scan(
		&r.RunID, &r.Scenario, &r.Seed, &ticks, &r.Days, &cfgJSON,
		&r.Stats.TotalCost, &r.Stats.FuelCost, &r.Stats.DelayCost, &r.Stats.CargoCost, &r.Stats.IncidentCost,
		&r.Stats.RunMeanSpeed, &r.Stats.Throughput, &r.Stats.CrashCount, &r.Stats.BreakdownCount,
		&r.Stats.NearMisses, &r.CreatedAt,
	)
	if err != nil {
		return r, err
	}
	r.Ticks = uint64(ticks)
	if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return r, fmt.Errorf("decode config of run %s: %w", r.RunID, err)
	}
	return r, nil
}

// Run returns the archived run with the given id.
func (db *DB) Run(ctx context.Context, runID string) (RunRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// Runs lists archived runs, newest first. A limit of zero or less returns
// every run.
func (db *DB) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Incidents returns the incident log of a run in incident order.
func (db *DB) Incidents(ctx context.Context, runID string) ([]sim.IncidentRecord, error) {
	if err := db.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT incident_id, tick, sim_time, day, vehicle_id, vehicle_type, direction,
			kind, position, occupants, injuries, material_loss, cargo_loss, cause
		FROM incidents WHERE run_id = ? ORDER BY incident_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []sim.IncidentRecord{}
	for rows.Next() {
		var (
			r                 sim.IncidentRecord
			id, tick, vehicle int64
			simTime, vt, dir  string
			kind              string
		)
		if err := rows.Scan(&id, &tick, &simTime, &r.Day, &vehicle, &vt, &dir,
			&kind, &r.Position, &r.Occupants, &r.Injuries, &r.MaterialLoss, &r.CargoLoss, &r.Cause); err != nil {
			return nil, err
		}
		if r.Time, err = time.Parse(time.RFC3339Nano, simTime); err != nil {
			return nil, fmt.Errorf("incident %d time: %w", id, err)
		}
		if err := r.Direction.UnmarshalText([]byte(dir)); err != nil {
			return nil, fmt.Errorf("incident %d: %w", id, err)
		}
		r.ID, r.Tick, r.VehicleID = uint64(id), uint64(tick), uint64(vehicle)
		r.VehicleType = scenario.Kind(vt)
		r.Kind = sim.IncidentKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// History returns the history samples of a run in sampling order.
func (db *DB) History(ctx context.Context, runID string) ([]sim.HistorySample, error) {
	if err := db.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT sim_time, day, vehicle_count, average_speed, total_cost, rain, risk
		FROM history WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []sim.HistorySample{}
	for rows.Next() {
		var (
			h       sim.HistorySample
			simTime string
		)
		if err := rows.Scan(&simTime, &h.Day, &h.VehicleCount, &h.AverageSpeed, &h.TotalCost, &h.Rain, &h.Risk); err != nil {
			return nil, err
		}
		if h.Time, err = time.Parse(time.RFC3339Nano, simTime); err != nil {
			return nil, fmt.Errorf("history time: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its logs.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (db *DB) requireRun(ctx context.Context, runID string) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE run_id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
}
