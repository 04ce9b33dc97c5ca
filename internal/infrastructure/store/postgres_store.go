package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists records in PostgreSQL with compare-and-swap writes
// on the version column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres opens and pings a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the records table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			kind       TEXT        NOT NULL,
			id         TEXT        NOT NULL,
			state      JSONB       NOT NULL,
			version    INTEGER     NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (kind, id)
		)`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	rec := Record{Kind: kind, ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version, updated_at FROM records WHERE kind = $1 AND id = $2`,
		kind, id,
	).Scan(&rec.State, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) List(ctx context.Context, kind string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, version, updated_at FROM records WHERE kind = $1 ORDER BY id`,
		kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Kind: kind}
		if err := rows.Scan(&rec.ID, &rec.State, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Put(ctx context.Context, kind, id string, state any, expectedVersion int) (*Record, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	if expectedVersion == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO records (kind, id, state, version, updated_at)
			 VALUES ($1, $2, $3, 1, $4)
			 ON CONFLICT (kind, id) DO NOTHING`,
			kind, id, data, now,
		)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, ErrVersionConflict
		}
		return &Record{Kind: kind, ID: id, State: data, Version: 1, UpdatedAt: now}, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET state = $1, version = version + 1, updated_at = $2
		 WHERE kind = $3 AND id = $4 AND version = $5`,
		data, now, kind, id, expectedVersion,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM records WHERE kind = $1 AND id = $2)`,
			kind, id,
		).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}
	return &Record{Kind: kind, ID: id, State: data, Version: expectedVersion + 1, UpdatedAt: now}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, kind, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE kind = $1 AND id = $2`,
		kind, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
