// Package store caches the energy levels of field sweeps in sqlite, so that
// an interrupted sweep resumes from the fields it has not solved yet.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/spinbath"
)

const (
	tableLevel = "level"

	timeout = 3 * time.Second
)

// Store holds the levels of one system, identified by key, in a sqlite database.
type Store struct {
	Path string
	key  string

	db *sql.DB
}

// Open opens or creates the database at dbPath.
// Levels of systems other than key are kept but never returned.
func Open(dbPath, key string) (*Store, error) {
	db, err := newDB(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Store{Path: dbPath, key: key, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached energies of both manifolds at f.
func (s *Store) Get(ctx context.Context, f spinbath.Field) ([2][]float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT manifold, i, energy FROM %s WHERE system=? AND magnitude=? AND theta=? AND phi=? ORDER BY manifold, i`, tableLevel)
	rows, err := s.db.QueryContext(ctx, sqlStr, s.key, f.Magnitude, f.Theta, f.Phi)
	if err != nil {
		return [2][]float64{}, false, errors.Wrap(err, "")
	}
	defer rows.Close()

	var energies [2][]float64
	var found bool
	for rows.Next() {
		var m, i int
		var e float64
		if err := rows.Scan(&m, &i, &e); err != nil {
			return [2][]float64{}, false, errors.Wrap(err, "")
		}
		if m < 0 || m >= len(energies) || i != len(energies[m]) {
			return [2][]float64{}, false, errors.Errorf("corrupted level %d %d at %#v", m, i, f)
		}
		energies[m] = append(energies[m], e)
		found = true
	}
	if err := rows.Err(); err != nil {
		return [2][]float64{}, false, errors.Wrap(err, "")
	}
	return energies, found, nil
}

// Put replaces the cached energies at f.
func (s *Store) Put(ctx context.Context, f spinbath.Field, energies [2][]float64) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE system=? AND magnitude=? AND theta=? AND phi=?`, tableLevel)
	if _, err := tx.ExecContext(ctx, sqlStr, s.key, f.Magnitude, f.Theta, f.Phi); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`INSERT OR REPLACE INTO %s (system, magnitude, theta, phi, manifold, i, energy) VALUES (?, ?, ?, ?, ?, ?, ?)`, tableLevel)
	for m, es := range energies {
		for i, e := range es {
			args := []any{s.key, f.Magnitude, f.Theta, f.Phi, m, i, e}
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// NumFields returns the number of distinct fields cached for this system.
func (s *Store) NumFields(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT count(1) FROM (SELECT DISTINCT magnitude, theta, phi FROM %s WHERE system=?)`, tableLevel)
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, s.key).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

// Clear removes every level of this system.
func (s *Store) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE system=?`, tableLevel)
	if _, err := s.db.ExecContext(ctx, sqlStr, s.key); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		system TEXT,
		magnitude REAL,
		theta REAL,
		phi REAL,
		manifold INTEGER,
		i INTEGER,
		energy REAL,
		PRIMARY KEY (system, magnitude, theta, phi, manifold, i)) STRICT`, tableLevel)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
