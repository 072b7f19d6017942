// Package store persists bolometric light curves in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/timzifer/superbol/lightcurve"
	"github.com/timzifer/superbol/luminosity"
)

// ErrNotFound is returned when no light curve is stored for an object.
var ErrNotFound = errors.New("light curve not found")

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// Open opens the SQLite database at path and applies pending migrations.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	db.ExecContext(ctx, "PRAGMA busy_timeout=5000")
	db.ExecContext(ctx, "PRAGMA foreign_keys=ON")

	st := New(db, logger)
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLightcurve stores lc as the newest run for object and returns its id.
func (s *Store) SaveLightcurve(ctx context.Context, object string, lc lightcurve.Lightcurve) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var explosion, explosionErr sql.NullFloat64
	if lc.Explosion != nil {
		explosion = sql.NullFloat64{Float64: lc.Explosion.Time, Valid: true}
		explosionErr = sql.NullFloat64{Float64: lc.Explosion.Uncertainty, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (object, strategy, distance_cm, distance_err, explosion, explosion_err)
		VALUES (?, ?, ?, ?, ?, ?)
	`, object, lc.Strategy, lc.Distance.Value, lc.Distance.Uncertainty, explosion, explosionErr)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, p := range lc.Points {
		var phase sql.NullFloat64
		if lc.Explosion != nil {
			phase = sql.NullFloat64{Float64: p.Phase, Valid: true}
		}
		d := p.Detail
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO points (run_id, time, phase, flux, flux_err, lum, lum_err, strategy, points,
				temperature, temperature_err, angular_radius, angular_radius_err, chi2, iterations, pairs,
				qbol, ir, uv, linear_uv)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, p.Time, phase, p.Flux.Value, p.Flux.Uncertainty, p.Luminosity.Value, p.Luminosity.Uncertainty, p.Strategy, d.Points,
			d.Temperature, d.TemperatureUncertainty, d.AngularRadius, d.AngularRadiusUncertainty, d.ChiSquare, d.Iterations, d.Pairs,
			d.QuasiBolometric.Value, d.IR.Value, d.UV.Value, d.LinearUV); err != nil {
			return 0, fmt.Errorf("insert point at %v: %w", p.Time, err)
		}
	}
	for _, sk := range lc.Skipped {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skipped (run_id, time, reason) VALUES (?, ?, ?)
		`, runID, sk.Time, sk.Reason()); err != nil {
			return 0, fmt.Errorf("insert skipped epoch at %v: %w", sk.Time, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug().Str("object", object).Int64("run", runID).Int("points", len(lc.Points)).Msg("light curve saved")
	return runID, nil
}

// LoadLightcurve returns the newest light curve stored for object.
func (s *Store) LoadLightcurve(ctx context.Context, object string) (lightcurve.Lightcurve, error) {
	var (
		lc                      lightcurve.Lightcurve
		runID                   int64
		explosion, explosionErr sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, distance_cm, distance_err, explosion, explosion_err
		FROM runs
		WHERE object = ?
		ORDER BY id DESC
		LIMIT 1
	`, object).Scan(&runID, &lc.Strategy, &lc.Distance.Value, &lc.Distance.Uncertainty, &explosion, &explosionErr)
	if errors.Is(err, sql.ErrNoRows) {
		return lc, fmt.Errorf("%w: %s", ErrNotFound, object)
	}
	if err != nil {
		return lc, err
	}
	if explosion.Valid {
		lc.Explosion = &lightcurve.Explosion{Time: explosion.Float64, Uncertainty: explosionErr.Float64}
	}

	lc.Points, err = s.points(ctx, runID)
	if err != nil {
		return lc, err
	}
	lc.Skipped, err = s.skipped(ctx, runID)
	return lc, err
}

func (s *Store) points(ctx context.Context, runID int64) ([]lightcurve.Point, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, phase, flux, flux_err, lum, lum_err, strategy, points,
			temperature, temperature_err, angular_radius, angular_radius_err, chi2, iterations, pairs,
			qbol, ir, uv, linear_uv
		FROM points
		WHERE run_id = ?
		ORDER BY time
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []lightcurve.Point
	for rows.Next() {
		var (
			p            lightcurve.Point
			phase        sql.NullFloat64
			qbol, ir, uv sql.NullFloat64
			linearUV     sql.NullBool
		)
		d := &p.Detail
		if err := rows.Scan(&p.Time, &phase, &p.Flux.Value, &p.Flux.Uncertainty, &p.Luminosity.Value, &p.Luminosity.Uncertainty, &p.Strategy, &d.Points,
			&d.Temperature, &d.TemperatureUncertainty, &d.AngularRadius, &d.AngularRadiusUncertainty, &d.ChiSquare, &d.Iterations, &d.Pairs,
			&qbol, &ir, &uv, &linearUV); err != nil {
			return nil, err
		}
		p.Phase = phase.Float64
		d.QuasiBolometric = luminosity.Flux{Value: qbol.Float64}
		d.IR = luminosity.Flux{Value: ir.Float64}
		d.UV = luminosity.Flux{Value: uv.Float64}
		d.LinearUV = linearUV.Bool
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) skipped(ctx context.Context, runID int64) ([]lightcurve.Skipped, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT time, reason FROM skipped WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lightcurve.Skipped
	for rows.Next() {
		var (
			sk     lightcurve.Skipped
			reason string
		)
		if err := rows.Scan(&sk.Time, &reason); err != nil {
			return nil, err
		}
		sk.Err = errors.New(reason)
		out = append(out, sk)
	}
	return out, rows.Err()
}

// Objects lists every object with at least one stored run.
func (s *Store) Objects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT object FROM runs ORDER BY object`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var object string
		if err := rows.Scan(&object); err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, rows.Err()
}
