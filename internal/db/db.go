package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/busgeo/route-geocoder/internal/models"
)

// Table names the records table and the two columns the pipeline touches.
type Table struct {
	Name        string
	IDColumn    string
	NamesColumn string
}

func (t Table) ident() string {
	return pgx.Identifier(strings.Split(t.Name, ".")).Sanitize()
}

// Store wraps database access helpers for the records table.
type Store struct {
	pool  *pgxpool.Pool
	table Table

	fetchSQL  string
	upsertSQL string
	getSQL    string
	listSQL   string
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string, table Table) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return NewWithPool(pool, table), nil
}

// NewWithPool creates a Store on an existing pool. Close releases the pool.
func NewWithPool(pool *pgxpool.Pool, table Table) *Store {
	tbl := table.ident()
	id := pgx.Identifier{table.IDColumn}.Sanitize()
	names := pgx.Identifier{table.NamesColumn}.Sanitize()

	return &Store{
		pool:     pool,
		table:    table,
		fetchSQL: fmt.Sprintf(`SELECT %s, %s FROM %s ORDER BY %s`, id, names, tbl, id),
		upsertSQL: fmt.Sprintf(`INSERT INTO %s (%s, %s)
VALUES ($1, $2::jsonb)
ON CONFLICT (%s) DO UPDATE
SET %s = EXCLUDED.%s`, tbl, id, names, id, names, names),
		getSQL:  fmt.Sprintf(`SELECT %s, to_jsonb(%s) FROM %s WHERE %s = $1`, id, names, tbl, id),
		listSQL: fmt.Sprintf(`SELECT %s, to_jsonb(%s) FROM %s ORDER BY %s LIMIT $1`, id, names, tbl, id),
	}
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FetchRecords loads every record's id and names value. The names value is
// decoded by the driver: jsonb and array columns arrive as []any.
func (s *Store) FetchRecords(ctx context.Context) ([]models.StoredRecord, error) {
	rows, err := s.pool.Query(ctx, s.fetchSQL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.table.Name, err)
	}
	defer rows.Close()

	records := make([]models.StoredRecord, 0)
	for rows.Next() {
		var rec models.StoredRecord
		if err := rows.Scan(&rec.ID, &rec.Names); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table.Name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertBatch inserts or updates the names column of each record, keyed by
// id. The batch runs in one transaction so it either lands whole or not at all.
func (s *Store) UpsertBatch(ctx context.Context, records []models.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		payload, err := json.Marshal(r.Names)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", r.ID, err)
		}
		batch.Queue(s.upsertSQL, r.ID, payload)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		res := tx.SendBatch(ctx, batch)
		for _, r := range records {
			if _, err := res.Exec(); err != nil {
				_ = res.Close()
				return fmt.Errorf("upsert record %d: %w", r.ID, err)
			}
		}
		return res.Close()
	})
}

// RecordRow is a stored record as served by the API. Names is the column
// value rendered as JSON.
type RecordRow struct {
	ID    int64           `json:"id"`
	Names json.RawMessage `json:"names"`
}

// GetRecord returns one record, or nil when it does not exist.
func (s *Store) GetRecord(ctx context.Context, id int64) (*RecordRow, error) {
	var row RecordRow
	var names []byte
	err := s.pool.QueryRow(ctx, s.getSQL, id).Scan(&row.ID, &names)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Names = rawOrNull(names)
	return &row, nil
}

// ListRecords returns up to limit records ordered by id.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]RecordRow, error) {
	rows, err := s.pool.Query(ctx, s.listSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RecordRow, 0)
	for rows.Next() {
		var row RecordRow
		var names []byte
		if err := rows.Scan(&row.ID, &names); err != nil {
			return nil, err
		}
		row.Names = rawOrNull(names)
		out = append(out, row)
	}
	return out, rows.Err()
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
