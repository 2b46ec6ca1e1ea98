package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// UserRoleRepository reads and grants application roles.
type UserRoleRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.AppRole, error)
	Grant(ctx context.Context, userID string, role domain.AppRole) error
	HasRole(ctx context.Context, userID string, role domain.AppRole) (bool, error)
}

type userRoleRepository struct {
	pool *pgxpool.Pool
}

// NewUserRoleRepository builds repository.
func NewUserRoleRepository(pool *pgxpool.Pool) UserRoleRepository {
	return &userRoleRepository{pool: pool}
}

func (r *userRoleRepository) ListByUser(ctx context.Context, userID string) ([]domain.AppRole, error) {
	const query = `SELECT role::text FROM user_roles WHERE user_id=$1 ORDER BY role`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []domain.AppRole{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, domain.AppRole(role))
	}
	return roles, rows.Err()
}

func (r *userRoleRepository) Grant(ctx context.Context, userID string, role domain.AppRole) error {
	const query = `
        INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
        ON CONFLICT (user_id, role) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID, string(role))
	return err
}

func (r *userRoleRepository) HasRole(ctx context.Context, userID string, role domain.AppRole) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, `SELECT has_role($1::uuid, $2::app_role)`, userID, string(role)).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
