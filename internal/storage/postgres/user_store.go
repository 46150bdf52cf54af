package postgres

import (
	"context"
	"errors"
	"fmt"

	"curvesync/internal/domain"
	"curvesync/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// FindOrCreate returns the user for an address, creating it on first
// sighting. The race between two concurrent creators resolves through the
// primary-key constraint: the loser re-reads the winner's row.
func (s *UserStore) FindOrCreate(ctx context.Context, address string) (*domain.User, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	user, err := s.GetByAddress(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	query := `INSERT INTO users (address, role) VALUES ($1, $2)`
	_, err = s.pool.Exec(ctx, query, address, domain.DefaultRole)
	if err != nil {
		if isDuplicateKeyError(err) {
			// Concurrent writer created it first.
			return s.GetByAddress(ctx, address)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetByAddress(ctx, address)
}

// GetByAddress retrieves a user. Returns ErrNotFound if not exists.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (*domain.User, error) {
	query := `SELECT address, display_name, role, created_at FROM users WHERE address = $1`

	var u domain.User
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&u.Address,
		&u.DisplayName,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by address: %w", err)
	}
	return &u, nil
}
