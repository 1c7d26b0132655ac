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

// ApplyTemplateToExternalVideo links a video uploaded directly on a platform
// to this Video: it pushes title, description, privacy, thumbnail and
// collection membership onto externalID and records the Video.
func (e *Engine) ApplyTemplateToExternalVideo(ctx context.Context, videoID uuid.UUID, p Platform, externalID string) (*Result, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("platform %q: %w", p, ErrPreconditionFailed)
	}
	if p == PlatformSecondary && e.secondary == nil {
		return nil, platformError(p, "update video", ErrPlatformDisabled)
	}
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.State != models.VideoStateNew && v.State != models.VideoStateRecorded {
		return nil, wrongState(v, "apply template")
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return nil, err
	}

	d := e.details(l, v)
	err = e.call(ctx, p, "update video", func(ctx context.Context) error {
		if p == PlatformPrimary {
			return e.primary.UpdateVideo(ctx, externalID, d)
		}
		return e.secondary.UpdateVideo(ctx, externalID, d)
	})
	if errors.Is(err, platforms.ErrNotFound) {
		return nil, fmt.Errorf("%s video %s: %w", p, externalID, ErrExternalNotFound)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Video: v}
	png, rerr := e.renderThumbnail(ctx, l, v)
	if rerr != nil {
		e.degrade(res, v.ID, StepThumbnailRender, "", rerr)
	}
	if p == PlatformPrimary {
		v.PrimaryBroadcastID = &externalID
		if png != nil {
			e.uploadPrimaryThumbnail(ctx, res, v, png)
		}
		e.attachPlaylist(ctx, res, l, v)
	} else {
		v.SecondaryVideoID = &externalID
		if png != nil {
			e.uploadSecondaryThumbnail(ctx, res, v, png)
		}
		e.attachAlbum(ctx, res, l, v)
	}

	prev := v.State
	v.State = models.VideoStateRecorded
	v.UpdatedAt = e.now()
	if err := e.commit(ctx, v, prev); err != nil {
		return nil, err
	}
	e.enqueueRetries(ctx, res)
	e.logger.Info("template applied to external video",
		zap.String("video_id", v.ID.String()),
		zap.String("platform", string(p)),
		zap.String("external_id", externalID))
	return res, nil
}
