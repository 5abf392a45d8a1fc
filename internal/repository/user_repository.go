package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

// UserRepository manages application users and the directory lookups
// used by issued-to resolution and free-text search.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, login, nicename, email, display_name, password_hash, role, active, last_login, created_at, updated_at`

// FindByID fetches a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// DisplayName resolves a user ID to its display name. Missing users
// return ok=false rather than an error.
func (r *UserRepository) DisplayName(ctx context.Context, id int64) (string, bool, error) {
	var name string
	query := `SELECT display_name FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &name, query, id); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve display name: %w", err)
	}
	return name, true, nil
}

// SearchIDs returns IDs of users whose login, nicename, email, or
// display name contains the search fragment, case-insensitively.
func (r *UserRepository) SearchIDs(ctx context.Context, fragment string) ([]int64, error) {
	var ids []int64
	pattern := "%" + strings.ToLower(fragment) + "%"
	query := `SELECT id FROM users
        WHERE LOWER(login) LIKE $1 OR LOWER(nicename) LIKE $1 OR LOWER(email) LIKE $1 OR LOWER(display_name) LIKE $1`
	if err := r.db.SelectContext(ctx, &ids, query, pattern); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return ids, nil
}

// List returns users matching the provided filters with pagination.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(display_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(login) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"display_name": "display_name",
		"email":        "email",
		"created_at":   "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "display_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		userColumns, where, column, order, size, (page-1)*size)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM users WHERE %s`, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	query := `INSERT INTO users (login, nicename, email, display_name, password_hash, role, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err := r.db.GetContext(ctx, &user.ID, query,
		user.Login, user.Nicename, user.Email, user.DisplayName, user.PasswordHash, user.Role, user.Active, now, now); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update persists profile changes to an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	query := `UPDATE users SET login = $1, nicename = $2, email = $3, display_name = $4, role = $5, active = $6, updated_at = $7 WHERE id = $8`
	res, err := r.db.ExecContext(ctx, query,
		user.Login, user.Nicename, user.Email, user.DisplayName, user.Role, user.Active, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, hash, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
        VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
        FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every live token of one user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW() WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog persists an audit trail record.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
        VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
