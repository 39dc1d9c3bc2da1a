// Package postgres implements the store interfaces on top of a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravets/finlog/internal/domain"
	"github.com/mkravets/finlog/internal/store"
)

// Postgres unique_violation error code.
const uniqueViolation = "23505"

type Storage struct {
	db *pgxpool.Pool
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

// UserStore

func (s *Storage) CreateUser(ctx context.Context, u *domain.User) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (id, provider_id, name, email, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.ProviderID, u.Name, u.Email, u.ImageURL).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Storage) UserByProviderID(ctx context.Context, providerID string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx, `
		SELECT id, provider_id, name, email, image_url, created_at, updated_at
		FROM users
		WHERE provider_id = $1
	`, providerID).Scan(&u.ID, &u.ProviderID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("user by provider id: %w", err)
	}
	return &u, nil
}

// TransactionStore

func (s *Storage) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, category, description, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Category, tx.Description, tx.Date).
		Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *Storage) TransactionByID(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, type, amount, category, description, date, created_at, updated_at
		FROM transactions
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Category,
		&tx.Description, &tx.Date, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("transaction by id: %w", err)
	}
	return &tx, nil
}

func (s *Storage) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	err := s.db.QueryRow(ctx, `
		UPDATE transactions
		SET type = $3, amount = $4, category = $5, description = $6, date = $7,
		    updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at
	`, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Category, tx.Description, tx.Date).
		Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (s *Storage) DeleteTransaction(ctx context.Context, userID, id string) error {
	result, err := s.db.Exec(ctx, `
		DELETE FROM transactions
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Storage) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, amount, category, description, date, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *Storage) CountTransactions(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM transactions WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

func (s *Storage) RecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, amount, category, description, date, created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Category,
			&tx.Description, &tx.Date, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return txs, nil
}
