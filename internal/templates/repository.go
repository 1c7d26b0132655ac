package templates

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/database"
)

const templateColumns = `id, name, first_title, second_title, lecturer_name, term_number, color, image_id, created_at, updated_at`

// Repository handles thumbnail templates and base images.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a templates repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTemplate(row pgx.Row) (*models.ThumbnailsTemplate, error) {
	var t models.ThumbnailsTemplate
	err := row.Scan(&t.ID, &t.Name, &t.FirstTitle, &t.SecondTitle, &t.LecturerName, &t.TermNumber, &t.Color,
		&t.ImageID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTemplate returns a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.ThumbnailsTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM thumbnails_templates WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, models.ErrNotFound
	}
	return t, err
}

// ListTemplates returns every template ordered by name.
func (r *Repository) ListTemplates(ctx context.Context) ([]models.ThumbnailsTemplate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM thumbnails_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ThumbnailsTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// CreateTemplate inserts a template. Names are unique.
func (r *Repository) CreateTemplate(ctx context.Context, t *models.ThumbnailsTemplate) error {
	const q = `INSERT INTO thumbnails_templates (name, first_title, second_title, lecturer_name, term_number, color, image_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, t.Name, t.FirstTitle, t.SecondTitle, t.LecturerName, t.TermNumber, t.Color, t.ImageID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrDuplicateKey
	}
	return err
}

// UpdateTemplate overwrites every editable field of a template.
func (r *Repository) UpdateTemplate(ctx context.Context, t *models.ThumbnailsTemplate) error {
	const q = `UPDATE thumbnails_templates SET name = $2, first_title = $3, second_title = $4, lecturer_name = $5,
		term_number = $6, color = $7, image_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.Name, t.FirstTitle, t.SecondTitle, t.LecturerName, t.TermNumber, t.Color, t.ImageID).
		Scan(&t.UpdatedAt)
	switch {
	case database.IsNoRows(err):
		return models.ErrNotFound
	case database.IsUniqueViolation(err):
		return models.ErrDuplicateKey
	}
	return err
}

// GetImage returns a base image by ID.
func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*models.ThumbnailsImage, error) {
	const q = `SELECT id, name, object_key, url, created_at FROM thumbnails_images WHERE id = $1`
	var img models.ThumbnailsImage
	err := r.pool.QueryRow(ctx, q, id).Scan(&img.ID, &img.Name, &img.ObjectKey, &img.URL, &img.CreatedAt)
	if database.IsNoRows(err) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// ListImages returns every base image, newest first.
func (r *Repository) ListImages(ctx context.Context) ([]models.ThumbnailsImage, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, object_key, url, created_at FROM thumbnails_images ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ThumbnailsImage
	for rows.Next() {
		var img models.ThumbnailsImage
		if err := rows.Scan(&img.ID, &img.Name, &img.ObjectKey, &img.URL, &img.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, img)
	}
	return list, rows.Err()
}

// CreateImage records an uploaded base image.
func (r *Repository) CreateImage(ctx context.Context, img *models.ThumbnailsImage) error {
	const q = `INSERT INTO thumbnails_images (name, object_key, url) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, img.Name, img.ObjectKey, img.URL).Scan(&img.ID, &img.CreatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrDuplicateKey
	}
	return err
}
