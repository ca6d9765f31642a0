package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/walkinq/queue-service/internal/domain"
)

// UserRepository defines persistence access for operator accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// OrganizationRepository defines persistence access for tenants.
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	FindByName(ctx context.Context, name string) (*domain.Organization, error)
}

type userRepository struct {
	pool DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool DB) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, name, password_hash, role, org_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	return storageErr(r.pool.QueryRow(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.OrgID,
	).Scan(&user.ID, &user.CreatedAt))
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, role, org_id, created_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, role, org_id, created_at
        FROM users WHERE LOWER(email)=LOWER($1)`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.OrgID,
		&user.CreatedAt,
	); err != nil {
		return nil, notFoundOr(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

type organizationRepository struct {
	pool DB
}

// NewOrganizationRepository returns a Postgres-backed implementation.
func NewOrganizationRepository(pool DB) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	const query = `INSERT INTO organizations (name) VALUES ($1) RETURNING id, created_at`
	return storageErr(r.pool.QueryRow(ctx, query, org.Name).Scan(&org.ID, &org.CreatedAt))
}

// FindByName returns nil when no organization has the name.
func (r *organizationRepository) FindByName(ctx context.Context, name string) (*domain.Organization, error) {
	const query = `SELECT id, name, created_at FROM organizations WHERE name=$1 ORDER BY created_at ASC LIMIT 1`
	var org domain.Organization
	err := r.pool.QueryRow(ctx, query, name).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &org, nil
}
