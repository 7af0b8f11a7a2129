package scans

import "context"

// Repo defines persistence operations for scan records.
type Repo interface {
	Insert(ctx context.Context, scan Scan) error
	// List returns matching scans, newest first.
	List(ctx context.Context, filter ListFilter) ([]Scan, error)
	Count(ctx context.Context, filter ListFilter) (Totals, error)
	CountByUser(ctx context.Context) (map[string]int, error)
	GetByID(ctx context.Context, scanID string) (Scan, error)
	Delete(ctx context.Context, scanID string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
