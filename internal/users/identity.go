package users

import (
	"context"
	"errors"
	"fmt"

	"skinscan-backend/internal/shared/auth"
)

// TokenResolver verifies a bearer token and returns its claims.
type TokenResolver interface {
	ResolveIdentity(ctx context.Context, token string) (auth.Identity, error)
}

// LiveIdentityResolver accepts a token only while its subject still has an
// account, so deleted users are locked out before their token expires.
type LiveIdentityResolver struct {
	Tokens TokenResolver
	Repo   Repo
}

func NewLiveIdentityResolver(tokens TokenResolver, repo Repo) *LiveIdentityResolver {
	return &LiveIdentityResolver{Tokens: tokens, Repo: repo}
}

func (r *LiveIdentityResolver) ResolveIdentity(ctx context.Context, token string) (auth.Identity, error) {
	id, err := r.Tokens.ResolveIdentity(ctx, token)
	if err != nil {
		return auth.Identity{}, err
	}
	if _, err := r.Repo.GetByID(ctx, id.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Identity{}, fmt.Errorf("%w: subject no longer exists", auth.ErrInvalidToken)
		}
		return auth.Identity{}, fmt.Errorf("lookup subject: %w", err)
	}
	return id, nil
}
