package videos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/database"
)

const videoColumns = `id, title, lecture_number, thumbnails_template_id, thumbnail_label, custom_title,
	lesson_id, state, primary_broadcast_id, secondary_video_id, secondary_stream_url, created_at, updated_at`

// Repository handles video persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Title, &v.LectureNumber, &v.ThumbnailsTemplateID, &v.ThumbnailLabel, &v.CustomTitle,
		&v.LessonID, &v.State, &v.PrimaryBroadcastID, &v.SecondaryVideoID, &v.SecondaryStreamURL, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVideo returns a video by ID.
func (r *Repository) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	v, err := scanVideo(r.pool.QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, models.ErrNotFound
	}
	return v, err
}

// InsertVideo stores a new video with its caller-assigned ID.
func (r *Repository) InsertVideo(ctx context.Context, v *models.Video) error {
	const q = `INSERT INTO videos (id, title, lecture_number, thumbnails_template_id, thumbnail_label, custom_title,
		lesson_id, state, primary_broadcast_id, secondary_video_id, secondary_stream_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, v.ID, v.Title, v.LectureNumber, v.ThumbnailsTemplateID, v.ThumbnailLabel, v.CustomTitle,
		v.LessonID, v.State, v.PrimaryBroadcastID, v.SecondaryVideoID, v.SecondaryStreamURL).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrDuplicateKey
	}
	return err
}

// ReplaceVideo overwrites the row only while it is still in state expected.
func (r *Repository) ReplaceVideo(ctx context.Context, v *models.Video, expected models.VideoState) error {
	const q = `UPDATE videos SET title = $2, lecture_number = $3, thumbnails_template_id = $4, thumbnail_label = $5,
		custom_title = $6, state = $7, primary_broadcast_id = $8, secondary_video_id = $9, secondary_stream_url = $10,
		updated_at = NOW()
		WHERE id = $1 AND state = $11`
	tag, err := r.pool.Exec(ctx, q, v.ID, v.Title, v.LectureNumber, v.ThumbnailsTemplateID, v.ThumbnailLabel,
		v.CustomTitle, v.State, v.PrimaryBroadcastID, v.SecondaryVideoID, v.SecondaryStreamURL, expected)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStaleWrite
	}
	return nil
}

// ListVideosByLesson returns the videos of a lesson, oldest first.
func (r *Repository) ListVideosByLesson(ctx context.Context, lessonID uuid.UUID) ([]models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE lesson_id = $1 ORDER BY created_at`
	return r.list(ctx, q, lessonID)
}

// ListVideosByState returns every video in state.
func (r *Repository) ListVideosByState(ctx context.Context, state models.VideoState) ([]models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE state = $1 ORDER BY updated_at`
	return r.list(ctx, q, state)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Video, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}
