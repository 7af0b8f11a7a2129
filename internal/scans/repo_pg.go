package scans

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var scanColumns = []string{"id", "user_id", "issues", "recommendations", "image_key", "created_at"}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Insert writes a scan row. Issues and recommendations are stored as jsonb.
func (r *PGRepo) Insert(ctx context.Context, scan Scan) error {
	issues, err := marshalJSONB(scan.Issues)
	if err != nil {
		return err
	}
	recs, err := marshalJSONB(scan.Recommendations)
	if err != nil {
		return err
	}
	var imageKey any
	if scan.ImageKey != "" {
		imageKey = scan.ImageKey
	}

	query, args, err := psql.Insert("scans").
		Columns(scanColumns...).
		Values(scan.ID, scan.UserID, issues, recs, imageKey, scan.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// List returns matching scans, newest first.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Scan, error) {
	builder := filter.apply(psql.Select(scanColumns...).From("scans")).
		OrderBy("created_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Scan{}
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count aggregates scan and issue counts plus the newest timestamp.
func (r *PGRepo) Count(ctx context.Context, filter ListFilter) (Totals, error) {
	query, args, err := filter.apply(psql.
		Select("COUNT(*)", "COALESCE(SUM(jsonb_array_length(issues)), 0)", "MAX(created_at)").
		From("scans")).
		ToSql()
	if err != nil {
		return Totals{}, fmt.Errorf("build count: %w", err)
	}

	var totals Totals
	var last sql.NullTime
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&totals.Scans, &totals.Issues, &last); err != nil {
		return Totals{}, err
	}
	if last.Valid {
		t := last.Time
		totals.LastScan = &t
	}
	return totals, nil
}

// CountByUser returns the number of scans per user id.
func (r *PGRepo) CountByUser(ctx context.Context) (map[string]int, error) {
	query, args, err := psql.Select("user_id", "COUNT(*)").From("scans").GroupBy("user_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by user: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var userID string
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		out[userID] = n
	}
	return out, rows.Err()
}

// isUUID reports whether id can be compared against a UUID column. Other
// values cannot match a row and would make Postgres reject the query.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetByID returns a scan by ID.
func (r *PGRepo) GetByID(ctx context.Context, scanID string) (Scan, error) {
	if !isUUID(scanID) {
		return Scan{}, ErrNotFound
	}
	query, args, err := psql.Select(scanColumns...).From("scans").Where(sq.Eq{"id": scanID}).Limit(1).ToSql()
	if err != nil {
		return Scan{}, fmt.Errorf("build get: %w", err)
	}
	s, err := scanRow(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scan{}, ErrNotFound
		}
		return Scan{}, err
	}
	return s, nil
}

// Delete removes a scan by ID.
func (r *PGRepo) Delete(ctx context.Context, scanID string) error {
	if !isUUID(scanID) {
		return ErrNotFound
	}
	query, args, err := psql.Delete("scans").Where(sq.Eq{"id": scanID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes every scan owned by userID.
func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if !isUUID(userID) {
		return 0, nil
	}
	query, args, err := psql.Delete("scans").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete by user: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (f ListFilter) apply(b sq.SelectBuilder) sq.SelectBuilder {
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if !f.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": f.Since})
	}
	return b
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (Scan, error) {
	var s Scan
	var issues, recs []byte
	var imageKey sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &issues, &recs, &imageKey, &s.CreatedAt); err != nil {
		return Scan{}, err
	}
	if err := unmarshalJSONB(issues, &s.Issues); err != nil {
		return Scan{}, fmt.Errorf("decode issues for scan %s: %w", s.ID, err)
	}
	if err := unmarshalJSONB(recs, &s.Recommendations); err != nil {
		return Scan{}, fmt.Errorf("decode recommendations for scan %s: %w", s.ID, err)
	}
	if s.Issues == nil {
		s.Issues = []Issue{}
	}
	if s.Recommendations == nil {
		s.Recommendations = []string{}
	}
	s.ImageKey = imageKey.String
	return s, nil
}

func marshalJSONB(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func unmarshalJSONB(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
