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

// StartTesting binds the broadcast to its ingest stream and switches it to
// the testing lifecycle. It may be repeated from LiveTest to recover from an
// earlier partial failure.
func (e *Engine) StartTesting(ctx context.Context, videoID uuid.UUID) (*Result, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.State != models.VideoStateScheduled && v.State != models.VideoStateLiveTest {
		return nil, wrongState(v, "start testing")
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return nil, err
	}
	if l.StreamKey == nil {
		return nil, fmt.Errorf("lesson %s: %w", l.ID, ErrNoStreamKey)
	}

	if l.StreamKey.IsRelay() {
		key := l.StreamKey.Relay
		err := e.call(ctx, PlatformRelay, "provision", func(ctx context.Context) error {
			return e.provisionRelay(ctx, key, v)
		})
		if err != nil {
			return nil, err
		}
	}
	if pk := l.StreamKey.PrimaryKey(); pk != nil && v.PrimaryBroadcastID != nil {
		if err := e.bindAndTest(ctx, *v.PrimaryBroadcastID, pk.ID); err != nil {
			return nil, err
		}
	}

	prev := v.State
	v.State = models.VideoStateLiveTest
	v.UpdatedAt = e.now()
	if err := e.commit(ctx, v, prev); err != nil {
		return nil, err
	}
	e.logger.Info("video testing", zap.String("video_id", v.ID.String()))
	return &Result{Video: v}, nil
}

func (e *Engine) bindAndTest(ctx context.Context, broadcastID, streamID string) error {
	err := e.call(ctx, PlatformPrimary, "bind stream", func(ctx context.Context) error {
		return e.primary.BindStream(ctx, broadcastID, streamID)
	})
	if err != nil {
		return err
	}
	b, err := e.getBroadcast(ctx, broadcastID)
	if err != nil {
		return err
	}
	if b.Lifecycle == platforms.LifecycleCreated || b.Lifecycle == platforms.LifecycleReady {
		_, err = e.transition(ctx, broadcastID, platforms.LifecycleTesting)
	}
	return err
}

func (e *Engine) getBroadcast(ctx context.Context, id string) (b *platforms.Broadcast, err error) {
	err = e.call(ctx, PlatformPrimary, "get broadcast", func(ctx context.Context) (err error) {
		b, err = e.primary.GetBroadcast(ctx, id)
		return err
	})
	return b, err
}

func (e *Engine) transition(ctx context.Context, id string, to platforms.Lifecycle) (b *platforms.Broadcast, err error) {
	err = e.call(ctx, PlatformPrimary, "transition to "+string(to), func(ctx context.Context) (err error) {
		b, err = e.primary.TransitionBroadcast(ctx, id, to)
		return err
	})
	return b, err
}

// driveToLive advances the broadcast at most one lifecycle hop per state and
// reports whether it ended up on air.
func (e *Engine) driveToLive(ctx context.Context, id string) (bool, error) {
	b, err := e.getBroadcast(ctx, id)
	if err != nil {
		return false, err
	}
	if b.Lifecycle == platforms.LifecycleCreated || b.Lifecycle == platforms.LifecycleReady {
		if b, err = e.transition(ctx, id, platforms.LifecycleTesting); err != nil {
			return false, err
		}
	}
	if b.Lifecycle == platforms.LifecycleTesting {
		if b, err = e.transition(ctx, id, platforms.LifecycleLive); err != nil {
			return false, err
		}
	}
	return b.Lifecycle.OnAir(), nil
}

// StartStreaming moves a LiveTest video to Live once every involved
// platform is on air. When something is not ready yet the video is left in
// LiveTest and Result.Pending is set; calling again is safe.
func (e *Engine) StartStreaming(ctx context.Context, videoID uuid.UUID) (*Result, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.State != models.VideoStateLiveTest {
		return nil, wrongState(v, "start streaming")
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return nil, err
	}
	if l.StreamKey == nil {
		return nil, fmt.Errorf("lesson %s: %w", l.ID, ErrNoStreamKey)
	}

	res := &Result{Video: v}
	ready := true
	if l.StreamKey.IsRelay() {
		if e.relay == nil {
			return nil, platformError(PlatformRelay, "status", ErrPlatformDisabled)
		}
		key := l.StreamKey.Relay
		var st *platforms.RelayStatus
		err := e.call(ctx, PlatformRelay, "status", func(ctx context.Context) (err error) {
			st, err = e.relay.Status(ctx, key.Name)
			return err
		})
		switch {
		case errors.Is(err, platforms.ErrNotFound):
			ready = false
		case err != nil:
			return nil, err
		default:
			ready = st.IsLive
		}
		// The secondary target is joined whether or not the relay is live
		// yet; AddTarget is idempotent.
		if v.SecondaryStreamURL != nil {
			target := *v.SecondaryStreamURL
			err := e.call(ctx, PlatformRelay, "add target", func(ctx context.Context) error {
				return e.relay.AddTarget(ctx, key.Name, target)
			})
			if err != nil {
				e.degrade(res, v.ID, StepRelayAddTarget, PlatformRelay, err)
			}
		}
	}
	if ready && l.StreamKey.PrimaryKey() != nil && v.PrimaryBroadcastID != nil {
		onAir, err := e.driveToLive(ctx, *v.PrimaryBroadcastID)
		if err != nil {
			return nil, err
		}
		ready = onAir
	}
	if !ready {
		res.Pending = true
		e.logger.Debug("broadcast not ready", zap.String("video_id", v.ID.String()))
		return res, nil
	}

	if v.SecondaryVideoID != nil && e.secondary != nil {
		id := *v.SecondaryVideoID
		err := e.call(ctx, PlatformSecondary, "publish", func(ctx context.Context) error {
			return e.secondary.PublishBroadcast(ctx, id)
		})
		if err != nil {
			e.degrade(res, v.ID, StepSecondaryPublish, PlatformSecondary, err)
		}
	}

	v.State = models.VideoStateLive
	v.UpdatedAt = e.now()
	if err := e.commit(ctx, v, models.VideoStateLiveTest); err != nil {
		return nil, err
	}
	e.enqueueRetries(ctx, res)
	e.logger.Info("video live", zap.String("video_id", v.ID.String()))
	return res, nil
}

// StopPrompt is what the operator confirms before a broadcast is stopped.
type StopPrompt struct {
	Video   *models.Video `json:"video"`
	Message string        `json:"message"`
}

// RequestStop checks that a video can be stopped and returns the
// confirmation prompt. It has no side effects.
func (e *Engine) RequestStop(ctx context.Context, videoID uuid.UUID) (*StopPrompt, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.State != models.VideoStateLive {
		return nil, wrongState(v, "request stop")
	}
	return &StopPrompt{Video: v, Message: fmt.Sprintf("Stop streaming %q?", v.Title)}, nil
}

// ConfirmStop completes the primary broadcast and records the video.
func (e *Engine) ConfirmStop(ctx context.Context, videoID uuid.UUID) (*Result, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.State != models.VideoStateLive {
		return nil, wrongState(v, "confirm stop")
	}

	if v.PrimaryBroadcastID != nil {
		b, err := e.getBroadcast(ctx, *v.PrimaryBroadcastID)
		if err != nil {
			return nil, err
		}
		switch b.Lifecycle {
		case platforms.LifecycleLive:
			if _, err := e.transition(ctx, b.ID, platforms.LifecycleComplete); err != nil {
				return nil, err
			}
		case platforms.LifecycleComplete:
		default:
			return nil, fmt.Errorf("broadcast %s is %s: %w", b.ID, b.Lifecycle, ErrStopRejected)
		}
	}

	res := &Result{Video: v}
	e.stopSecondary(ctx, res, v)

	v.State = models.VideoStateRecorded
	v.UpdatedAt = e.now()
	if err := e.commit(ctx, v, models.VideoStateLive); err != nil {
		return nil, err
	}
	e.enqueueRetries(ctx, res)
	e.logger.Info("video recorded", zap.String("video_id", v.ID.String()))
	return res, nil
}

func (e *Engine) stopSecondary(ctx context.Context, res *Result, v *models.Video) {
	if v.SecondaryVideoID == nil || e.secondary == nil {
		return
	}
	id := *v.SecondaryVideoID
	err := e.call(ctx, PlatformSecondary, "stop", func(ctx context.Context) error {
		return e.secondary.StopBroadcast(ctx, id)
	})
	if err != nil {
		e.degrade(res, v.ID, StepSecondaryStop, PlatformSecondary, err)
	}
}
