package lessons

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/database"
)

const lessonColumns = `id, name, title, lecturer_name, term_number, year, double_numeration, kind, privacy,
	main_template_id, playlist_id, album_id, stream_key, current_lecture_number, created_at, updated_at`

// Repository handles lesson persistence. The stream key is stored as JSONB.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lessons repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLesson(row pgx.Row) (*models.Lesson, error) {
	var l models.Lesson
	var key []byte
	err := row.Scan(&l.ID, &l.Name, &l.Title, &l.LecturerName, &l.TermNumber, &l.Year, &l.DoubleNumeration, &l.Kind,
		&l.Privacy, &l.MainTemplateID, &l.PlaylistID, &l.AlbumID, &key, &l.CurrentLectureNumber, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(key) > 0 {
		l.StreamKey = new(models.StreamKey)
		if err := json.Unmarshal(key, l.StreamKey); err != nil {
			return nil, fmt.Errorf("decode stream key of lesson %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

func encodeStreamKey(k *models.StreamKey) ([]byte, error) {
	if k == nil {
		return nil, nil
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(k)
}

// GetLesson returns a lesson by ID.
func (r *Repository) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	l, err := scanLesson(r.pool.QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, models.ErrNotFound
	}
	return l, err
}

// ListLessons returns every lesson, newest first.
func (r *Repository) ListLessons(ctx context.Context) ([]models.Lesson, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lessonColumns+` FROM lessons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	return list, rows.Err()
}

// InsertLesson stores a new lesson with its caller-assigned ID.
func (r *Repository) InsertLesson(ctx context.Context, l *models.Lesson) error {
	key, err := encodeStreamKey(l.StreamKey)
	if err != nil {
		return err
	}
	const q = `INSERT INTO lessons (id, name, title, lecturer_name, term_number, year, double_numeration, kind, privacy,
		main_template_id, playlist_id, album_id, stream_key, current_lecture_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, l.ID, l.Name, l.Title, l.LecturerName, l.TermNumber, l.Year, l.DoubleNumeration,
		l.Kind, l.Privacy, l.MainTemplateID, l.PlaylistID, l.AlbumID, key, l.CurrentLectureNumber).
		Scan(&l.CreatedAt, &l.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrDuplicateKey
	}
	return err
}

// ReplaceLesson overwrites the lesson settings. The lecture counter is left
// alone; it only moves through ShiftLectureNumber.
func (r *Repository) ReplaceLesson(ctx context.Context, l *models.Lesson) error {
	key, err := encodeStreamKey(l.StreamKey)
	if err != nil {
		return err
	}
	const q = `UPDATE lessons SET name = $2, title = $3, lecturer_name = $4, term_number = $5, year = $6,
		double_numeration = $7, kind = $8, privacy = $9, main_template_id = $10, playlist_id = $11, album_id = $12,
		stream_key = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING current_lecture_number, updated_at`
	err = r.pool.QueryRow(ctx, q, l.ID, l.Name, l.Title, l.LecturerName, l.TermNumber, l.Year, l.DoubleNumeration,
		l.Kind, l.Privacy, l.MainTemplateID, l.PlaylistID, l.AlbumID, key).
		Scan(&l.CurrentLectureNumber, &l.UpdatedAt)
	if database.IsNoRows(err) {
		return models.ErrNotFound
	}
	return err
}

// ShiftLectureNumber moves the counter by one numbering step in a single
// statement. A step below 1 is refused with models.ErrLectureNumberFloor.
func (r *Repository) ShiftLectureNumber(ctx context.Context, id uuid.UUID, forward bool) (*models.Lesson, error) {
	dir := 1
	if !forward {
		dir = -1
	}
	q := `UPDATE lessons
		SET current_lecture_number = current_lecture_number + (CASE WHEN double_numeration THEN 2 ELSE 1 END) * $2,
			updated_at = NOW()
		WHERE id = $1 AND current_lecture_number + (CASE WHEN double_numeration THEN 2 ELSE 1 END) * $2 >= 1
		RETURNING ` + lessonColumns
	l, err := scanLesson(r.pool.QueryRow(ctx, q, id, dir))
	if !database.IsNoRows(err) {
		return l, err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lessons WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrNotFound
	}
	return nil, models.ErrLectureNumberFloor
}
