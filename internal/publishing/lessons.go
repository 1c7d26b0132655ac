package publishing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

// ErrInvalidTerm is returned for terms outside 1..8 and SC.
var ErrInvalidTerm = errors.New("term must be 1..8 or SC")

// LessonInput is collected by the lesson creation dialogue.
type LessonInput struct {
	Name         string `json:"name" binding:"required"`
	Title        string `json:"title" binding:"required"`
	LecturerName string `json:"lecturer_name" binding:"required"`
	TermNumber   string `json:"term_number" binding:"required"`
}

// LessonSettings is a partial update of a lesson; nil fields are kept.
type LessonSettings struct {
	Name             *string            `json:"name"`
	Title            *string            `json:"title"`
	LecturerName     *string            `json:"lecturer_name"`
	TermNumber       *string            `json:"term_number"`
	Year             *string            `json:"year"`
	DoubleNumeration *bool              `json:"double_numeration"`
	Kind             *models.LessonKind `json:"kind"`
	Privacy          *models.Privacy    `json:"privacy"`
	MainTemplateID   *uuid.UUID         `json:"main_template_id"`
}

// CreateLesson stores a new lesson with single numbering starting at 1.
func (e *Engine) CreateLesson(ctx context.Context, in LessonInput) (*models.Lesson, error) {
	in.TermNumber = strings.TrimSpace(in.TermNumber)
	if !models.ValidTerm(in.TermNumber) {
		return nil, ErrInvalidTerm
	}
	year := e.cfg.Year
	if year == "" {
		year = strconv.Itoa(e.now().Year())
	}
	now := e.now()
	l := &models.Lesson{
		ID:                   uuid.New(),
		Name:                 strings.TrimSpace(in.Name),
		Title:                strings.TrimSpace(in.Title),
		LecturerName:         strings.TrimSpace(in.LecturerName),
		TermNumber:           in.TermNumber,
		Year:                 year,
		Kind:                 models.LessonKindLecture,
		Privacy:              models.PrivacyPublic,
		CurrentLectureNumber: 1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := e.lessons.InsertLesson(ctx, l); err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}
	e.logger.Info("lesson created", zap.String("lesson_id", l.ID.String()), zap.String("name", l.Name))
	return l, nil
}

// GetLesson returns a stored lesson.
func (e *Engine) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	return e.loadLesson(ctx, id)
}

// ListLessons returns every lesson.
func (e *Engine) ListLessons(ctx context.Context) ([]models.Lesson, error) {
	return e.lessons.ListLessons(ctx)
}

// UpdateLessonSettings applies a partial update.
func (e *Engine) UpdateLessonSettings(ctx context.Context, id uuid.UUID, s LessonSettings) (*models.Lesson, error) {
	if s.TermNumber != nil && !models.ValidTerm(strings.TrimSpace(*s.TermNumber)) {
		return nil, ErrInvalidTerm
	}
	if s.Kind != nil && !s.Kind.Valid() {
		return nil, fmt.Errorf("kind %q: %w", *s.Kind, ErrPreconditionFailed)
	}
	if s.Privacy != nil && !s.Privacy.Valid() {
		return nil, fmt.Errorf("privacy %q: %w", *s.Privacy, ErrPreconditionFailed)
	}
	if s.MainTemplateID != nil {
		if _, err := e.templates.GetTemplate(ctx, *s.MainTemplateID); err != nil {
			return nil, fmt.Errorf("template %s: %w", *s.MainTemplateID, err)
		}
	}
	return e.editLesson(ctx, id, func(l *models.Lesson) error {
		setString(&l.Name, s.Name)
		setString(&l.Title, s.Title)
		setString(&l.LecturerName, s.LecturerName)
		setString(&l.TermNumber, s.TermNumber)
		setString(&l.Year, s.Year)
		if s.DoubleNumeration != nil {
			l.DoubleNumeration = *s.DoubleNumeration
		}
		if s.Kind != nil {
			l.Kind = *s.Kind
		}
		if s.Privacy != nil {
			l.Privacy = *s.Privacy
		}
		if s.MainTemplateID != nil {
			id := *s.MainTemplateID
			l.MainTemplateID = &id
		}
		return nil
	})
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (e *Engine) editLesson(ctx context.Context, id uuid.UUID, mutate func(l *models.Lesson) error) (*models.Lesson, error) {
	l, err := e.loadLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(l); err != nil {
		return nil, err
	}
	l.UpdatedAt = e.now()
	if err := e.lessons.ReplaceLesson(ctx, l); err != nil {
		return nil, fmt.Errorf("replace lesson %s: %w", l.ID, err)
	}
	return l, nil
}

// ChangeLectureNumber advances or rewinds the lesson counter by one numbering step.
func (e *Engine) ChangeLectureNumber(ctx context.Context, id uuid.UUID, forward bool) (*models.Lesson, error) {
	l, err := e.lessons.ShiftLectureNumber(ctx, id, forward)
	if err != nil {
		return nil, fmt.Errorf("lesson %s: %w", id, err)
	}
	return l, nil
}

// CreatePrimaryPlaylist creates the lesson playlist once.
func (e *Engine) CreatePrimaryPlaylist(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	l, err := e.loadLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.PlaylistID != nil {
		return l, nil
	}
	var playlistID string
	err = e.call(ctx, PlatformPrimary, "create playlist", func(ctx context.Context) (err error) {
		playlistID, err = e.primary.CreatePlaylist(ctx, l.VideoTitle(), l.Description(e.cfg.Program), l.Privacy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.editLesson(ctx, id, func(l *models.Lesson) error {
		l.PlaylistID = &playlistID
		return nil
	})
}

// CreateSecondaryAlbum creates the lesson album once.
func (e *Engine) CreateSecondaryAlbum(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	if e.secondary == nil {
		return nil, platformError(PlatformSecondary, "create album", ErrPlatformDisabled)
	}
	l, err := e.loadLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.AlbumID != nil {
		return l, nil
	}
	var albumID string
	err = e.call(ctx, PlatformSecondary, "create album", func(ctx context.Context) (err error) {
		albumID, err = e.secondary.CreateAlbum(ctx, l.VideoTitle(), l.Privacy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.editLesson(ctx, id, func(l *models.Lesson) error {
		l.AlbumID = &albumID
		return nil
	})
}

// ListStreams returns the primary platform ingest streams an operator can pick.
func (e *Engine) ListStreams(ctx context.Context) (streams []platforms.IngestStream, err error) {
	err = e.call(ctx, PlatformPrimary, "list streams", func(ctx context.Context) (err error) {
		streams, err = e.primary.ListStreams(ctx)
		return err
	})
	return streams, err
}

// CreateStream creates a primary platform ingest stream.
func (e *Engine) CreateStream(ctx context.Context, title string) (s *platforms.IngestStream, err error) {
	err = e.call(ctx, PlatformPrimary, "create stream", func(ctx context.Context) (err error) {
		s, err = e.primary.CreateStream(ctx, title)
		return err
	})
	return s, err
}

// SetDirectStreamKey binds a lesson to an existing primary ingest stream.
func (e *Engine) SetDirectStreamKey(ctx context.Context, lessonID uuid.UUID, streamID string) (*models.Lesson, error) {
	if _, err := e.loadLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	var s *platforms.IngestStream
	err := e.call(ctx, PlatformPrimary, "get stream", func(ctx context.Context) (err error) {
		s, err = e.primary.GetStream(ctx, streamID)
		return err
	})
	if errors.Is(err, platforms.ErrNotFound) {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrExternalNotFound)
	}
	if err != nil {
		return nil, err
	}
	key := models.NewDirectStreamKey(models.DirectPlatformKey{ID: s.ID, Name: s.Name, Key: s.Key})
	return e.editLesson(ctx, lessonID, func(l *models.Lesson) error {
		l.StreamKey = key
		return nil
	})
}
