package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gradlink/gradlink-api/internal/models"
)

// UserRepository handles persistence of users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, role, department_id, active, last_login, created_at, updated_at`

// FindByID returns a user by its ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin stamps the last successful authentication.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ListActivePeers returns active users of the given roles within a department,
// excluding the caller. Used to enumerate messageable peers.
func (r *UserRepository) ListActivePeers(ctx context.Context, departmentID, excludeID string, roles []models.UserRole) ([]models.MessageablePeer, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(roles))
	args := []interface{}{departmentID, excludeID}
	for i, role := range roles {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, role)
	}
	query := fmt.Sprintf(`SELECT id, full_name, email, role, department_id
        FROM users
        WHERE department_id = $1 AND id <> $2 AND active = TRUE AND role IN (%s)
        ORDER BY full_name ASC`, strings.Join(placeholders, ","))

	var peers []models.MessageablePeer
	if err := r.db.SelectContext(ctx, &peers, query, args...); err != nil {
		return nil, fmt.Errorf("list messageable peers: %w", err)
	}
	return peers, nil
}

// ListActiveNonAdmin returns every active user outside the admin tiers,
// across departments, excluding the caller. Backs the admin messageable view.
func (r *UserRepository) ListActiveNonAdmin(ctx context.Context, excludeID string) ([]models.MessageablePeer, error) {
	const query = `SELECT id, full_name, email, role, department_id
        FROM users
        WHERE id <> $1 AND active = TRUE AND role NOT IN ($2, $3)
        ORDER BY full_name ASC`

	var peers []models.MessageablePeer
	if err := r.db.SelectContext(ctx, &peers, query, excludeID, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, fmt.Errorf("list non-admin users: %w", err)
	}
	return peers, nil
}

// ListInstructorsByLoad returns active instructors of a department ranked by
// ascending advised-project count, then name, to spread advising load.
func (r *UserRepository) ListInstructorsByLoad(ctx context.Context, departmentID string) ([]models.InstructorLoad, error) {
	const query = `SELECT u.id, u.full_name, u.email, u.department_id,
        COUNT(p.id) AS advised_count
        FROM users u
        LEFT JOIN projects p ON p.advisor_id = u.id
        WHERE u.department_id = $1 AND u.role = $2 AND u.active = TRUE
        GROUP BY u.id, u.full_name, u.email, u.department_id
        ORDER BY advised_count ASC, u.full_name ASC`

	var instructors []models.InstructorLoad
	if err := r.db.SelectContext(ctx, &instructors, query, departmentID, models.RoleInstructor); err != nil {
		return nil, fmt.Errorf("list instructors by load: %w", err)
	}
	return instructors, nil
}

// ListActiveIDsByDepartment returns ids of active department members,
// optionally restricted to one role. Used by notification fan-out.
func (r *UserRepository) ListActiveIDsByDepartment(ctx context.Context, departmentID string, role *models.UserRole) ([]string, error) {
	query := `SELECT id FROM users WHERE department_id = $1 AND active = TRUE`
	args := []interface{}{departmentID}
	if role != nil {
		args = append(args, *role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list department user ids: %w", err)
	}
	return ids, nil
}
