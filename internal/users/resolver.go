// Package users resolves identity-provider subjects to internal user
// records, creating them lazily on first sight.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mkravets/finlog/internal/auth"
	"github.com/mkravets/finlog/internal/cache"
	"github.com/mkravets/finlog/internal/domain"
	"github.com/mkravets/finlog/internal/store"
)

const cacheSize = 1024

// Resolver maps provider subjects to users. Successful lookups are cached
// for a fixed window; the provider-id to internal-id mapping is effectively
// immutable so staleness is harmless.
type Resolver struct {
	store store.UserStore
	cache *cache.LRU[*domain.User]
	group singleflight.Group
	log   zerolog.Logger
}

func NewResolver(s store.UserStore, ttl time.Duration, log zerolog.Logger) *Resolver {
	return &Resolver{
		store: s,
		cache: cache.New[*domain.User](cacheSize, ttl),
		log:   log,
	}
}

// Resolve returns the internal user for the given identity, creating it on
// first sight. Concurrent first-time requests for the same subject are
// collapsed; if another instance wins the insert race, the unique constraint
// on provider_id reports it and the loser re-fetches.
func (r *Resolver) Resolve(ctx context.Context, id auth.Identity) (*domain.User, error) {
	if u, ok := r.cache.Get(id.Subject); ok {
		return u, nil
	}

	v, err, _ := r.group.Do(id.Subject, func() (interface{}, error) {
		return r.lookupOrCreate(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	u := v.(*domain.User)
	r.cache.Set(id.Subject, u)
	return u, nil
}

// Invalidate drops the cached mapping for a subject. Unused by the request
// path; exposed for operational tooling.
func (r *Resolver) Invalidate(subject string) {
	r.cache.Delete(subject)
}

func (r *Resolver) lookupOrCreate(ctx context.Context, id auth.Identity) (*domain.User, error) {
	u, err := r.store.UserByProviderID(ctx, id.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	u = &domain.User{
		ID:         uuid.NewString(),
		ProviderID: id.Subject,
		Name:       id.Name,
		Email:      id.Email,
		ImageURL:   id.ImageURL,
	}
	err = r.store.CreateUser(ctx, u)
	if err == nil {
		r.log.Info().Str("user_id", u.ID).Msg("Created user on first sight")
		return u, nil
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost the insert race; the row exists now.
		return r.store.UserByProviderID(ctx, id.Subject)
	}
	return nil, fmt.Errorf("create user: %w", err)
}
