package scans

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores scans in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	scans []Scan
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

// Insert stores the scan.
func (r *MemoryRepo) Insert(ctx context.Context, scan Scan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, cloneScan(scan))
	return nil
}

// List returns matching scans, newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Scan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Scan, 0, len(r.scans))
	for i := len(r.scans) - 1; i >= 0; i-- {
		if filter.matches(r.scans[i]) {
			out = append(out, cloneScan(r.scans[i]))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count aggregates matching scans. Limit is ignored.
func (r *MemoryRepo) Count(ctx context.Context, filter ListFilter) (Totals, error) {
	if err := ctx.Err(); err != nil {
		return Totals{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var totals Totals
	for _, s := range r.scans {
		if !filter.matches(s) {
			continue
		}
		totals.Scans++
		totals.Issues += len(s.Issues)
		if totals.LastScan == nil || s.CreatedAt.After(*totals.LastScan) {
			created := s.CreatedAt
			totals.LastScan = &created
		}
	}
	return totals, nil
}

// CountByUser returns the number of scans per user id.
func (r *MemoryRepo) CountByUser(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int)
	for _, s := range r.scans {
		out[s.UserID]++
	}
	return out, nil
}

// GetByID returns a scan by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, scanID string) (Scan, error) {
	if err := ctx.Err(); err != nil {
		return Scan{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.scans {
		if s.ID == scanID {
			return cloneScan(s), nil
		}
	}
	return Scan{}, ErrNotFound
}

// Delete removes a scan by ID.
func (r *MemoryRepo) Delete(ctx context.Context, scanID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.scans {
		if s.ID == scanID {
			r.scans = append(r.scans[:i], r.scans[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DeleteByUser removes every scan owned by userID.
func (r *MemoryRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.scans[:0]
	var removed int64
	for _, s := range r.scans {
		if s.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.scans = kept
	return removed, nil
}

func (f ListFilter) matches(s Scan) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if !f.Since.IsZero() && s.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func cloneScan(s Scan) Scan {
	out := s
	out.Issues = Report{Issues: s.Issues}.clone().Issues
	out.Recommendations = cloneStrings(s.Recommendations)
	return out
}
