// Package store archives calibrated fits in a sqlite database: one row per
// fit with its goodness-of-fit statistics, the parameter table and the
// simulated head packed as a float64 blob.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/opt"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/stats"
)

var ErrNotFound = eris.New("not found")

// FitRecord is one archived calibration.
type FitRecord struct {
	ID         string
	Model      string
	Tmin, Tmax time.Time
	Noise      bool
	Cost       float64
	Status     string
	Stats      stats.Summary
	Parameters []param.Parameter
	Simulation *forcing.Series
	CreatedAt  time.Time
}

// NewRecord collects what is archived of a fit.
func NewRecord(f *opt.Fit) (FitRecord, error) {
	st, err := f.Stats()
	if err != nil {
		return FitRecord{}, err
	}
	sim, err := f.Model.Simulate(f.Optimal, f.Tmin, f.Tmax)
	if err != nil {
		return FitRecord{}, err
	}
	return FitRecord{
		Model:      f.Model.Name(),
		Tmin:       f.Tmin,
		Tmax:       f.Tmax,
		Noise:      f.Noise,
		Cost:       f.Result.Cost,
		Status:     f.Result.Status,
		Stats:      st,
		Parameters: f.Model.Parameters(),
		Simulation: sim,
	}, nil
}

// Store is a sqlite fit archive.
type Store struct {
	db *sql.DB
}

// Open opens a sqlite database at dsn and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS fits (
	id         TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	tmin       DATETIME NOT NULL,
	tmax       DATETIME NOT NULL,
	noise      INTEGER NOT NULL,
	cost       REAL,
	status     TEXT NOT NULL,
	n          INTEGER NOT NULL,
	rmse       REAL,
	sse        REAL,
	bias       REAL,
	avg_dev    REAL,
	nse        REAL,
	kge        REAL,
	evp        REAL,
	rsq        REAL,
	aic        REAL,
	bic        REAL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fit_parameters (
	fit_id  TEXT NOT NULL REFERENCES fits(id) ON DELETE CASCADE,
	pos     INTEGER NOT NULL,
	unit    TEXT NOT NULL,
	role    TEXT NOT NULL,
	initial REAL,
	pmin    REAL,
	pmax    REAL,
	vary    INTEGER NOT NULL,
	optimal REAL,
	stderr  REAL,
	PRIMARY KEY (fit_id, pos)
);

CREATE TABLE IF NOT EXISTS fit_series (
	fit_id TEXT PRIMARY KEY REFERENCES fits(id) ON DELETE CASCADE,
	name   TEXT NOT NULL,
	kind   TEXT NOT NULL,
	start  DATETIME NOT NULL,
	step   INTEGER NOT NULL,
	vals   BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fits_model ON fits(model);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NaN is stored as NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func packFloats(f []float64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
		return nil, eris.Wrap(err, "sqlite: pack series")
	}
	return buf.Bytes(), nil
}

func unpackFloats(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, eris.Errorf("sqlite: series blob of %d bytes", len(b))
	}
	o := make([]float64, len(b)/8)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, o); err != nil {
		return nil, eris.Wrap(err, "sqlite: unpack series")
	}
	return o, nil
}

// SaveFit stores r under a fresh id, which is returned. The simulation must
// lie on a regular grid.
func (s *Store) SaveFit(ctx context.Context, r FitRecord) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	st := r.Stats
	_, err = tx.ExecContext(ctx,
		`INSERT INTO fits (id, model, tmin, tmax, noise, cost, status, n, rmse, sse, bias, avg_dev, nse, kge, evp, rsq, aic, bic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Model, r.Tmin.UTC(), r.Tmax.UTC(), r.Noise, nullable(r.Cost), r.Status, st.N,
		nullable(st.RMSE), nullable(st.SSE), nullable(st.Bias), nullable(st.AvgDev), nullable(st.NSE),
		nullable(st.KGE), nullable(st.EVP), nullable(st.RSquared), nullable(st.AIC), nullable(st.BIC), now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert fit %s", r.Model)
	}

	for i, p := range r.Parameters {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO fit_parameters (fit_id, pos, unit, role, initial, pmin, pmax, vary, optimal, stderr)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, p.Unit, p.Role, nullable(p.Initial), nullable(p.PMin), nullable(p.PMax), p.Vary,
			nullable(p.Optimal), nullable(p.Stderr),
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: insert parameter %s", p.Name())
		}
	}

	if sim := r.Simulation; sim != nil && sim.Len() > 0 {
		var step time.Duration
		if sim.Len() > 1 {
			step = sim.T[1].Sub(sim.T[0])
			for k := 2; k < sim.Len(); k++ {
				if sim.T[k].Sub(sim.T[k-1]) != step {
					return "", eris.Errorf("sqlite: series %s is not regular", sim.Name)
				}
			}
		}
		blob, err := packFloats(sim.V)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO fit_series (fit_id, name, kind, start, step, vals) VALUES (?, ?, ?, ?, ?, ?)`,
			id, sim.Name, sim.Kind.String(), sim.T[0].UTC(), int64(step), blob,
		)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: insert series")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit")
	}
	return id, nil
}

// Fits lists the archived fits of a model, newest first. Parameters and
// series are not loaded.
func (s *Store) Fits(ctx context.Context, model string) ([]FitRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, tmin, tmax, noise, cost, status, n, rmse, sse, bias, avg_dev, nse, kge, evp, rsq, aic, bic, created_at
		 FROM fits WHERE model = ? ORDER BY created_at DESC, id`,
		model,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list fits %s", model)
	}
	defer rows.Close()

	var o []FitRecord
	for rows.Next() {
		var r FitRecord
		var cost, rmse, sse, bias, avg, nse, kge, evp, rsq, aic, bic sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Model, &r.Tmin, &r.Tmax, &r.Noise, &cost, &r.Status, &r.Stats.N,
			&rmse, &sse, &bias, &avg, &nse, &kge, &evp, &rsq, &aic, &bic, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fit")
		}
		r.Cost = orNaN(cost)
		r.Stats.RMSE, r.Stats.SSE, r.Stats.Bias, r.Stats.AvgDev = orNaN(rmse), orNaN(sse), orNaN(bias), orNaN(avg)
		r.Stats.NSE, r.Stats.KGE, r.Stats.EVP, r.Stats.RSquared = orNaN(nse), orNaN(kge), orNaN(evp), orNaN(rsq)
		r.Stats.AIC, r.Stats.BIC = orNaN(aic), orNaN(bic)
		o = append(o, r)
	}
	return o, eris.Wrap(rows.Err(), "sqlite: iterate fits")
}

// Parameters returns the archived parameter table of fit id in model order.
func (s *Store) Parameters(ctx context.Context, id string) ([]param.Parameter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit, role, initial, pmin, pmax, vary, optimal, stderr FROM fit_parameters WHERE fit_id = ? ORDER BY pos`,
		id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parameters %s", id)
	}
	defer rows.Close()

	var o []param.Parameter
	for rows.Next() {
		var p param.Parameter
		var initial, pmin, pmax, optimal, stderr sql.NullFloat64
		if err := rows.Scan(&p.Unit, &p.Role, &initial, &pmin, &pmax, &p.Vary, &optimal, &stderr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parameter")
		}
		p.Initial, p.PMin, p.PMax = orNaN(initial), orNaN(pmin), orNaN(pmax)
		p.Optimal, p.Stderr = orNaN(optimal), orNaN(stderr)
		o = append(o, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate parameters")
	}
	if len(o) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: parameters of fit %s", id)
	}
	return o, nil
}

// Series returns the simulated head archived with fit id.
func (s *Store) Series(ctx context.Context, id string) (*forcing.Series, error) {
	var name, kind string
	var start time.Time
	var step int64
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT name, kind, start, step, vals FROM fit_series WHERE fit_id = ?`, id,
	).Scan(&name, &kind, &start, &step, &blob)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: series of fit %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: series %s", id)
	}
	k, err := forcing.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	v, err := unpackFloats(blob)
	if err != nil {
		return nil, err
	}
	t := make([]time.Time, len(v))
	for i := range t {
		t[i] = start.Add(time.Duration(int64(i) * step))
	}
	return &forcing.Series{Name: name, Kind: k, T: t, V: v}, nil
}
