package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var profileColumns = []string{"id", "email", "role", "created_at"}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// validID reports whether id fits the UUID primary key.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PGRepo) Get(ctx context.Context, id string) (Profile, error) {
	if !validID(id) {
		return Profile{}, ErrNotFound
	}
	query, args, err := psql.Select(profileColumns...).From("profiles").Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("build get: %w", err)
	}
	var p Profile
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Email, &p.Role, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (r *PGRepo) Create(ctx context.Context, p Profile) error {
	query, args, err := psql.Insert("profiles").
		Columns(profileColumns...).
		Values(p.ID, p.Email, p.Role, p.CreatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

func (r *PGRepo) List(ctx context.Context) ([]Profile, error) {
	query, args, err := psql.Select(profileColumns...).From("profiles").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Profile{}
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.Role, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) SetRole(ctx context.Context, id, role string) (Profile, error) {
	if !validID(id) {
		return Profile{}, ErrNotFound
	}
	query, args, err := psql.Update("profiles").
		Set("role", role).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, email, role, created_at").
		ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("build update: %w", err)
	}
	var p Profile
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Email, &p.Role, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	query, args, err := psql.Delete("profiles").Where(sq.Eq{"id": id}).ToSql()
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

func (r *PGRepo) Count(ctx context.Context, since time.Time) (int, error) {
	builder := psql.Select("COUNT(*)").From("profiles")
	if !since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": since})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
