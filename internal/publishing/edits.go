package publishing

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/models"
)

const maxEditAttempts = 3

// editVideo applies mutate to a freshly loaded video and persists it. On a
// concurrent change the edit is re-applied to the reloaded video.
func (e *Engine) editVideo(ctx context.Context, videoID uuid.UUID, mutate func(v *models.Video, l *models.Lesson)) (*models.Video, error) {
	var lastErr error
	for attempt := 0; attempt < maxEditAttempts; attempt++ {
		v, err := e.loadVideo(ctx, videoID)
		if err != nil {
			return nil, err
		}
		l, err := e.loadLesson(ctx, v.LessonID)
		if err != nil {
			return nil, err
		}
		mutate(v, l)
		v.UpdatedAt = e.now()
		err = e.videos.ReplaceVideo(ctx, v, v.State)
		if err == nil {
			e.notify(ctx, v)
			return v, nil
		}
		if !errors.Is(err, models.ErrStaleWrite) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// EditLectureNumber changes the number label. The title follows unless a
// custom title is set.
func (e *Engine) EditLectureNumber(ctx context.Context, videoID uuid.UUID, number string) (*models.Video, error) {
	number = strings.TrimSpace(number)
	return e.editVideo(ctx, videoID, func(v *models.Video, l *models.Lesson) {
		v.LectureNumber = number
		if v.CustomTitle != nil {
			v.Title = *v.CustomTitle
		} else {
			v.Title = l.DefaultVideoTitle(number)
		}
	})
}

// EditCustomTitle overrides the title and, when label is non-empty, the
// thumbnail number label.
func (e *Engine) EditCustomTitle(ctx context.Context, videoID uuid.UUID, title, label string) (*models.Video, error) {
	title = strings.TrimSpace(title)
	label = strings.TrimSpace(label)
	return e.editVideo(ctx, videoID, func(v *models.Video, _ *models.Lesson) {
		v.CustomTitle = &title
		v.Title = title
		if label != "" {
			v.ThumbnailLabel = &label
		}
	})
}

// UseTemplateTitle drops the custom title and label overrides.
func (e *Engine) UseTemplateTitle(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	return e.editVideo(ctx, videoID, func(v *models.Video, l *models.Lesson) {
		v.CustomTitle = nil
		v.ThumbnailLabel = nil
		v.Title = l.DefaultVideoTitle(v.LectureNumber)
	})
}
