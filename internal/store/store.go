// Package store defines the persistence interfaces consumed by the service
// layer. The postgres subpackage provides the production implementation;
// tests use in-memory fakes.
package store

import (
	"context"
	"errors"

	"github.com/mkravets/finlog/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist or is owned by
	// another user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert violates a unique
	// constraint, e.g. two concurrent first-time creations of the same user.
	ErrAlreadyExists = errors.New("already exists")
)

// UserStore persists user records.
type UserStore interface {
	// CreateUser inserts u. Returns ErrAlreadyExists when a user with the
	// same provider id was inserted concurrently.
	CreateUser(ctx context.Context, u *domain.User) error

	// UserByProviderID looks a user up by identity-provider subject id.
	UserByProviderID(ctx context.Context, providerID string) (*domain.User, error)
}

// TransactionStore persists transaction records. Every read and mutation is
// filtered by owner id so cross-user access degrades to ErrNotFound.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	TransactionByID(ctx context.Context, userID, id string) (*domain.Transaction, error)

	// UpdateTransaction overwrites every mutable field of the row identified
	// by tx.ID and tx.UserID.
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	// ListTransactions returns a page of the user's transactions ordered by
	// date descending.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error)
	CountTransactions(ctx context.Context, userID string) (int64, error)

	// RecentTransactions returns up to limit of the user's most recent
	// transactions by date.
	RecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}
