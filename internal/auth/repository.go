package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/database"
)

// Repository handles the admin allow-list.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByLogin returns an admin by login.
func (r *Repository) GetByLogin(ctx context.Context, login string) (*models.Admin, error) {
	const q = `SELECT id, login, password_hash, comment, role, created_at, updated_at FROM admins WHERE login = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, login).Scan(&a.ID, &a.Login, &a.Password, &a.Comment, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns all admins ordered by login.
func (r *Repository) List(ctx context.Context) ([]models.AdminPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, login, comment, role, created_at FROM admins ORDER BY login`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AdminPublic
	for rows.Next() {
		var a models.AdminPublic
		if err := rows.Scan(&a.ID, &a.Login, &a.Comment, &a.Role, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Create inserts a new admin. A taken login yields models.ErrDuplicateKey.
func (r *Repository) Create(ctx context.Context, login, passwordHash, comment string, role models.Role) (*models.Admin, error) {
	const q = `INSERT INTO admins (login, password_hash, comment, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, login, password_hash, comment, role, created_at, updated_at`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, login, passwordHash, comment, string(role)).
		Scan(&a.ID, &a.Login, &a.Password, &a.Comment, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return nil, models.ErrDuplicateKey
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureOwner creates the bootstrap owner unless the login already exists.
// It reports whether a row was inserted.
func (r *Repository) EnsureOwner(ctx context.Context, login, passwordHash string) (bool, error) {
	const q = `INSERT INTO admins (login, password_hash, comment, role)
		VALUES ($1, $2, 'bootstrap', 'owner')
		ON CONFLICT (login) DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, login, passwordHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
