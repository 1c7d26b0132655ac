package publishing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

// CreateVideo inserts the next video of a lesson in state New. It makes no
// platform calls.
func (e *Engine) CreateVideo(ctx context.Context, lessonID uuid.UUID) (*models.Video, error) {
	l, err := e.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if l.MainTemplateID == nil {
		return nil, fmt.Errorf("lesson %s has no thumbnails template: %w", l.ID, ErrPreconditionFailed)
	}
	number := l.NextLectureNumber()
	now := e.now()
	v := &models.Video{
		ID:                   uuid.New(),
		Title:                l.DefaultVideoTitle(number),
		LectureNumber:        number,
		ThumbnailsTemplateID: *l.MainTemplateID,
		LessonID:             l.ID,
		State:                models.VideoStateNew,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := e.videos.InsertVideo(ctx, v); err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	e.logger.Info("video created",
		zap.String("video_id", v.ID.String()),
		zap.String("lesson_id", l.ID.String()),
		zap.String("lecture_number", number))
	e.notify(ctx, v)
	return v, nil
}

// GetVideo returns a stored video.
func (e *Engine) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return e.loadVideo(ctx, id)
}

// ListVideos returns the videos of a lesson, oldest first.
func (e *Engine) ListVideos(ctx context.Context, lessonID uuid.UUID) ([]models.Video, error) {
	if _, err := e.loadLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	return e.videos.ListVideosByLesson(ctx, lessonID)
}

// ScheduleStream creates the platform broadcasts for a New video and moves
// it to Scheduled. Only the primary broadcast creation is gating.
func (e *Engine) ScheduleStream(ctx context.Context, videoID uuid.UUID) (*Result, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.State != models.VideoStateNew {
		return nil, wrongState(v, "schedule")
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return nil, err
	}
	if l.StreamKey == nil {
		return nil, fmt.Errorf("lesson %s: %w", l.ID, ErrNoStreamKey)
	}

	details := e.details(l, v)
	var b *platforms.Broadcast
	err = e.call(ctx, PlatformPrimary, "create broadcast", func(ctx context.Context) (err error) {
		b, err = e.primary.CreateBroadcast(ctx, details)
		return err
	})
	if err != nil {
		return nil, err
	}
	v.PrimaryBroadcastID = &b.ID

	res := &Result{Video: v}
	e.attachPlaylist(ctx, res, l, v)

	if l.StreamKey.IsRelay() {
		e.createSecondary(ctx, res, l, v, details)
		key := l.StreamKey.Relay
		err := e.call(ctx, PlatformRelay, "provision", func(ctx context.Context) error {
			return e.provisionRelay(ctx, key, v)
		})
		if err != nil {
			e.degrade(res, v.ID, StepRelayProvision, PlatformRelay, err)
		}
	}

	e.uploadThumbnails(ctx, res, l, v)

	v.State = models.VideoStateScheduled
	v.UpdatedAt = e.now()
	if err := e.commit(ctx, v, models.VideoStateNew); err != nil {
		e.logger.Error("scheduled broadcast left without a video",
			zap.String("video_id", v.ID.String()),
			zap.String("broadcast_id", b.ID),
			zap.Error(err))
		return nil, err
	}
	e.enqueueRetries(ctx, res)
	e.logger.Info("video scheduled",
		zap.String("video_id", v.ID.String()),
		zap.String("broadcast_id", b.ID),
		zap.Int("degraded", len(res.Degraded)))
	return res, nil
}

func (e *Engine) createSecondary(ctx context.Context, res *Result, l *models.Lesson, v *models.Video, d platforms.BroadcastDetails) {
	if e.secondary == nil {
		return
	}
	var sv *platforms.SecondaryVideo
	err := e.call(ctx, PlatformSecondary, "create broadcast", func(ctx context.Context) (err error) {
		sv, err = e.secondary.CreateBroadcast(ctx, d)
		return err
	})
	if err != nil {
		e.degrade(res, v.ID, StepSecondaryCreate, PlatformSecondary, err)
		return
	}
	v.SecondaryVideoID = &sv.ID
	if sv.StreamURL != "" {
		v.SecondaryStreamURL = &sv.StreamURL
	}
	e.attachAlbum(ctx, res, l, v)
}
