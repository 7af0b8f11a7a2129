package profiles

import (
	"context"
	"time"
)

// Repo persists profiles.
type Repo interface {
	Get(ctx context.Context, id string) (Profile, error)
	// Create inserts p unless a profile with the same id exists.
	Create(ctx context.Context, p Profile) error
	// List returns profiles newest first.
	List(ctx context.Context) ([]Profile, error)
	SetRole(ctx context.Context, id, role string) (Profile, error)
	Delete(ctx context.Context, id string) error
	// Count returns the number of profiles created at or after since.
	// A zero since counts all profiles.
	Count(ctx context.Context, since time.Time) (int, error)
}
