package publishing

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

// Action is an operation the console may offer for a video.
type Action string

const (
	ActionSchedule       Action = "schedule"
	ActionStartTesting   Action = "start_testing"
	ActionStartStreaming Action = "start_streaming"
	ActionStop           Action = "stop"
	ActionApplyTemplate  Action = "apply_template"
	ActionEdit           Action = "edit"
)

// AllowedActions lists what can be done with a video in state s.
func AllowedActions(s models.VideoState) []Action {
	switch s {
	case models.VideoStateNew:
		return []Action{ActionSchedule, ActionApplyTemplate, ActionEdit}
	case models.VideoStateScheduled:
		return []Action{ActionStartTesting, ActionEdit}
	case models.VideoStateLiveTest:
		return []Action{ActionStartTesting, ActionStartStreaming, ActionEdit}
	case models.VideoStateLive:
		return []Action{ActionStop}
	case models.VideoStateRecorded:
		return []Action{ActionApplyTemplate, ActionEdit}
	}
	return nil
}

// VideoStatus is a snapshot of a video and its remote counterparts.
// Remote fields are nil when the object does not exist or the lookup failed;
// failures are reported in Errors keyed by platform.
type VideoStatus struct {
	Video     *models.Video             `json:"video"`
	Actions   []Action                  `json:"actions"`
	Primary   *platforms.Broadcast      `json:"primary,omitempty"`
	Secondary *platforms.SecondaryVideo `json:"secondary,omitempty"`
	Relay     *platforms.RelayStatus    `json:"relay,omitempty"`
	Errors    map[Platform]string       `json:"errors,omitempty"`
}

// Status fetches the remote state of a video from every platform
// concurrently. A failed lookup only fills Errors; the other lookups still
// complete.
func (e *Engine) Status(ctx context.Context, videoID uuid.UUID) (*VideoStatus, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return nil, err
	}
	st := &VideoStatus{Video: v, Actions: AllowedActions(v.State)}

	var mu sync.Mutex
	record := func(p Platform, err error) {
		if err == nil || errors.Is(err, platforms.ErrNotFound) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if st.Errors == nil {
			st.Errors = make(map[Platform]string)
		}
		st.Errors[p] = err.Error()
	}

	var g errgroup.Group
	if v.PrimaryBroadcastID != nil {
		g.Go(func() error {
			b, err := e.getBroadcast(ctx, *v.PrimaryBroadcastID)
			st.Primary = b
			record(PlatformPrimary, err)
			return nil
		})
	}
	if v.SecondaryVideoID != nil && e.secondary != nil {
		g.Go(func() error {
			var sv *platforms.SecondaryVideo
			err := e.call(ctx, PlatformSecondary, "get video", func(ctx context.Context) (err error) {
				sv, err = e.secondary.GetVideo(ctx, *v.SecondaryVideoID)
				return err
			})
			st.Secondary = sv
			record(PlatformSecondary, err)
			return nil
		})
	}
	if l.StreamKey.IsRelay() && e.relay != nil {
		name := l.StreamKey.Relay.Name
		g.Go(func() error {
			var rs *platforms.RelayStatus
			err := e.call(ctx, PlatformRelay, "status", func(ctx context.Context) (err error) {
				rs, err = e.relay.Status(ctx, name)
				return err
			})
			st.Relay = rs
			record(PlatformRelay, err)
			return nil
		})
	}
	// Lookups report through record and never fail the group.
	_ = g.Wait()
	return st, nil
}
