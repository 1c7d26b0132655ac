package publishing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

var (
	// ErrUnknownStep is returned by RetryStep for steps that cannot be replayed.
	ErrUnknownStep = errors.New("step cannot be retried")
	// ErrStepTargetMissing means the stored video does not point at the
	// platform video the step acts on yet.
	ErrStepTargetMissing = errors.New("step target not recorded")
)

// RetryStep replays one best-effort step of a video against its current
// stored state. It fails when the platform video the step needs is not
// recorded, so the job is retried instead of being dropped.
func (e *Engine) RetryStep(ctx context.Context, videoID uuid.UUID, step Step) error {
	if !step.Retryable() {
		return fmt.Errorf("%s: %w", step, ErrUnknownStep)
	}
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if err := e.stepTarget(v, step); err != nil {
		return err
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return err
	}
	res := &Result{Video: v}
	retry := e.withoutQueue()
	switch step {
	case StepPrimaryPlaylist:
		retry.attachPlaylist(ctx, res, l, v)
	case StepSecondaryAlbum:
		retry.attachAlbum(ctx, res, l, v)
	case StepPrimaryThumbnail, StepSecondaryThumbnail:
		png, err := retry.renderThumbnail(ctx, l, v)
		if err != nil {
			return err
		}
		if step == StepPrimaryThumbnail {
			retry.uploadPrimaryThumbnail(ctx, res, v, png)
		} else {
			retry.uploadSecondaryThumbnail(ctx, res, v, png)
		}
	case StepSecondaryStop:
		retry.stopSecondary(ctx, res, v)
	}
	if len(res.Degraded) > 0 {
		return res.Degraded[0].Err
	}
	return nil
}

// stepTarget checks that v records the platform video step acts on.
func (e *Engine) stepTarget(v *models.Video, step Step) error {
	var p Platform
	var id *string
	switch step {
	case StepPrimaryPlaylist, StepPrimaryThumbnail:
		p, id = PlatformPrimary, v.PrimaryBroadcastID
	default:
		p, id = PlatformSecondary, v.SecondaryVideoID
		if e.secondary == nil {
			return platformError(p, string(step), ErrPlatformDisabled)
		}
	}
	if id == nil {
		return fmt.Errorf("%s for video %s: no %s video: %w", step, v.ID, p, ErrStepTargetMissing)
	}
	return nil
}

// withoutQueue returns a copy of the engine that does not enqueue retries,
// so a replayed step does not schedule itself again.
func (e *Engine) withoutQueue() *Engine {
	c := *e
	c.queue = nil
	return &c
}

// SweepLive records Live videos whose primary broadcast was already
// completed on the platform side. It returns how many videos moved.
func (e *Engine) SweepLive(ctx context.Context) (int, error) {
	live, err := e.videos.ListVideosByState(ctx, models.VideoStateLive)
	if err != nil {
		return 0, fmt.Errorf("list live videos: %w", err)
	}
	moved := 0
	for i := range live {
		v := &live[i]
		if v.PrimaryBroadcastID == nil {
			continue
		}
		b, err := e.getBroadcast(ctx, *v.PrimaryBroadcastID)
		if err != nil {
			if !errors.Is(err, platforms.ErrNotFound) {
				e.logger.Warn("sweep: get broadcast", zap.String("video_id", v.ID.String()), zap.Error(err))
			}
			continue
		}
		if b.Lifecycle != platforms.LifecycleComplete {
			continue
		}
		if _, err := e.ConfirmStop(ctx, v.ID); err != nil {
			if !errors.Is(err, ErrWrongState) {
				e.logger.Warn("sweep: record video", zap.String("video_id", v.ID.String()), zap.Error(err))
			}
			continue
		}
		moved++
	}
	return moved, nil
}
