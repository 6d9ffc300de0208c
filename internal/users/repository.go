// Package users provides a read model over agency users. The engine needs it
// for role checks and for fanning out approval notifications to active admins;
// user CRUD itself lives outside this service.
package users

import (
	"context"
	"errors"

	"tripdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User roles.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// User is one agency user.
type User struct {
	ID       uuid.UUID
	AgencyID uuid.UUID
	Email    string
	Name     string
	Role     string
	IsActive bool
}

// Repository provides read access to users.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a users repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns one user scoped to the agency.
func (r *Repository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, agency_id, email, name, role, is_active
		FROM users
		WHERE agency_id = $1 AND id = $2
	`, agencyID, id).Scan(&u.ID, &u.AgencyID, &u.Email, &u.Name, &u.Role, &u.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// ListActiveAdmins returns every active admin of the agency.
func (r *Repository) ListActiveAdmins(ctx context.Context, agencyID uuid.UUID) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agency_id, email, name, role, is_active
		FROM users
		WHERE agency_id = $1 AND role = $2 AND is_active
		ORDER BY name
	`, agencyID, RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.AgencyID, &u.Email, &u.Name, &u.Role, &u.IsActive); err != nil {
			return nil, err
		}
		admins = append(admins, u)
	}
	return admins, rows.Err()
}
