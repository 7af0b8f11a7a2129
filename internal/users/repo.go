package users

import "context"

// Repo persists local accounts. Emails are unique case-insensitively.
type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// UpsertGoogle links a Google subject to the account with the same
	// email, creating the account when none exists.
	UpsertGoogle(ctx context.Context, user User) (User, error)
	Delete(ctx context.Context, userID string) error
}
