// Package publishing drives lecture videos through New → Scheduled →
// LiveTest → Live → Recorded while keeping the primary platform, the
// secondary platform and the relay in step with the stored video.
package publishing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

const (
	// DefaultCallTimeout bounds a single primary or secondary platform call.
	DefaultCallTimeout = 20 * time.Second
	// DefaultPrimaryIngestURL is where the relay forwards the primary copy.
	DefaultPrimaryIngestURL = "rtmp://a.rtmp.youtube.com/live2"
)

// Config tunes the engine.
type Config struct {
	CallTimeout      time.Duration
	PrimaryIngestURL string
	// Program is the study program named in video descriptions.
	Program string
	// Year is stamped on new lessons; empty means the current calendar year.
	Year string
}

// Deps are the engine's collaborators. Secondary, Relay, Thumbnails, Queue
// and Notifier may be nil.
type Deps struct {
	Videos     VideoStore
	Lessons    LessonStore
	Templates  TemplateStore
	RelayKeys  RelayKeyStore
	Primary    PrimaryPlatform
	Secondary  SecondaryPlatform
	Relay      Relay
	Thumbnails ThumbnailRenderer
	Queue      RetryQueue
	Notifier   Notifier
	Logger     *zap.Logger
}

// Engine owns the video state machine.
type Engine struct {
	videos     VideoStore
	lessons    LessonStore
	templates  TemplateStore
	relayKeys  RelayKeyStore
	primary    PrimaryPlatform
	secondary  SecondaryPlatform
	relay      Relay
	thumbnails ThumbnailRenderer
	queue      RetryQueue
	notifier   Notifier
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
	intn       func(n int) int
}

// New creates an engine.
func New(d Deps, cfg Config) *Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.PrimaryIngestURL == "" {
		cfg.PrimaryIngestURL = DefaultPrimaryIngestURL
	}
	return &Engine{
		videos:     d.Videos,
		lessons:    d.Lessons,
		templates:  d.Templates,
		relayKeys:  d.RelayKeys,
		primary:    d.Primary,
		secondary:  d.Secondary,
		relay:      d.Relay,
		thumbnails: d.Thumbnails,
		queue:      d.Queue,
		notifier:   d.Notifier,
		cfg:        cfg,
		logger:     d.Logger,
		now:        time.Now,
		intn:       rand.IntN,
	}
}

// call runs fn under the per-call deadline and wraps its error.
func (e *Engine) call(ctx context.Context, p Platform, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return platformError(p, op, fn(ctx))
}

func (e *Engine) loadVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	v, err := e.videos.GetVideo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", id, err)
	}
	return v, nil
}

func (e *Engine) loadLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	l, err := e.lessons.GetLesson(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lesson %s: %w", id, err)
	}
	return l, nil
}

// commit persists v if the stored row is still in state expected. When the
// row moved on, the fresh state decides between ErrWrongState and a stale
// write the caller may retry from scratch.
func (e *Engine) commit(ctx context.Context, v *models.Video, expected models.VideoState) error {
	err := e.videos.ReplaceVideo(ctx, v, expected)
	if err == nil {
		e.notify(ctx, v)
		return nil
	}
	if !errors.Is(err, models.ErrStaleWrite) {
		return fmt.Errorf("replace video %s: %w", v.ID, err)
	}
	fresh, ferr := e.videos.GetVideo(ctx, v.ID)
	if ferr != nil {
		return fmt.Errorf("reload video %s: %w", v.ID, ferr)
	}
	if fresh.State != expected {
		e.logger.Info("video changed concurrently",
			zap.String("video_id", v.ID.String()),
			zap.String("expected", string(expected)),
			zap.String("actual", string(fresh.State)))
		return fmt.Errorf("video %s is %s, expected %s: %w", v.ID, fresh.State, expected, ErrWrongState)
	}
	return fmt.Errorf("replace video %s: %w", v.ID, err)
}

func (e *Engine) notify(ctx context.Context, v *models.Video) {
	if e.notifier != nil {
		e.notifier.VideoChanged(ctx, v)
	}
}

// degrade records a failed best-effort step on the result.
func (e *Engine) degrade(res *Result, videoID uuid.UUID, step Step, p Platform, err error) {
	res.Degraded = append(res.Degraded, StepFailure{Step: step, Platform: p, Err: err, Message: err.Error()})
	e.logger.Warn("best-effort step failed",
		zap.String("video_id", videoID.String()),
		zap.String("step", string(step)),
		zap.Error(err))
}

// enqueueRetries queues the retryable failures of res. It must run after
// the video carrying the step targets has been committed.
func (e *Engine) enqueueRetries(ctx context.Context, res *Result) {
	if e.queue == nil || res == nil || res.Video == nil {
		return
	}
	for _, f := range res.Degraded {
		if !f.Step.Retryable() {
			continue
		}
		if err := e.queue.EnqueueStepRetry(ctx, res.Video.ID, string(f.Step)); err != nil {
			e.logger.Error("enqueue step retry failed",
				zap.String("video_id", res.Video.ID.String()),
				zap.String("step", string(f.Step)),
				zap.Error(err))
		}
	}
}

// DescriptionFull is the lesson description plus links to its collections.
func (e *Engine) DescriptionFull(l *models.Lesson) string {
	var b strings.Builder
	b.WriteString(l.Description(e.cfg.Program))
	if l.PlaylistID != nil && e.primary != nil {
		b.WriteString("\n")
		b.WriteString(e.primary.PlaylistURL(*l.PlaylistID))
	}
	if l.Privacy == models.PrivacyPublic && l.AlbumID != nil && e.secondary != nil {
		b.WriteString("\n")
		b.WriteString(e.secondary.AlbumURL(*l.AlbumID))
	}
	return b.String()
}

func (e *Engine) details(l *models.Lesson, v *models.Video) platforms.BroadcastDetails {
	return platforms.BroadcastDetails{
		Title:          v.Title,
		Description:    e.DescriptionFull(l),
		Privacy:        l.Privacy,
		ScheduledStart: e.now().Add(time.Minute),
	}
}

// PrimaryTarget is the RTMP URL the relay forwards to for a primary ingest key.
func (e *Engine) PrimaryTarget(k *models.DirectPlatformKey) string {
	return strings.TrimSuffix(e.cfg.PrimaryIngestURL, "/") + "/" + k.Key
}

// Thumbnail renders the cover of a video.
func (e *Engine) Thumbnail(ctx context.Context, videoID uuid.UUID) ([]byte, error) {
	v, err := e.loadVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	l, err := e.loadLesson(ctx, v.LessonID)
	if err != nil {
		return nil, err
	}
	return e.renderThumbnail(ctx, l, v)
}

func (e *Engine) renderThumbnail(ctx context.Context, l *models.Lesson, v *models.Video) ([]byte, error) {
	if e.thumbnails == nil {
		return nil, fmt.Errorf("thumbnail renderer: %w", ErrPlatformDisabled)
	}
	tpl, err := e.templates.GetTemplate(ctx, v.ThumbnailsTemplateID)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", v.ThumbnailsTemplateID, err)
	}
	return e.thumbnails.Render(ctx, tpl, v.NumberLabel(l.Kind))
}

// uploadThumbnails renders once and pushes the image to every platform
// video the Video already points at. All failures are degraded.
func (e *Engine) uploadThumbnails(ctx context.Context, res *Result, l *models.Lesson, v *models.Video) {
	if v.PrimaryBroadcastID == nil && v.SecondaryVideoID == nil {
		return
	}
	png, err := e.renderThumbnail(ctx, l, v)
	if err != nil {
		e.degrade(res, v.ID, StepThumbnailRender, "", err)
		return
	}
	if v.PrimaryBroadcastID != nil {
		e.uploadPrimaryThumbnail(ctx, res, v, png)
	}
	if v.SecondaryVideoID != nil && e.secondary != nil {
		e.uploadSecondaryThumbnail(ctx, res, v, png)
	}
}

func (e *Engine) uploadPrimaryThumbnail(ctx context.Context, res *Result, v *models.Video, png []byte) {
	err := e.call(ctx, PlatformPrimary, "upload thumbnail", func(ctx context.Context) error {
		return e.primary.UploadThumbnail(ctx, *v.PrimaryBroadcastID, png)
	})
	if err != nil {
		e.degrade(res, v.ID, StepPrimaryThumbnail, PlatformPrimary, err)
	}
}

func (e *Engine) uploadSecondaryThumbnail(ctx context.Context, res *Result, v *models.Video, png []byte) {
	err := e.call(ctx, PlatformSecondary, "upload thumbnail", func(ctx context.Context) error {
		return e.secondary.UploadThumbnail(ctx, *v.SecondaryVideoID, png)
	})
	if err != nil {
		e.degrade(res, v.ID, StepSecondaryThumbnail, PlatformSecondary, err)
	}
}

func (e *Engine) attachPlaylist(ctx context.Context, res *Result, l *models.Lesson, v *models.Video) {
	if l.PlaylistID == nil || v.PrimaryBroadcastID == nil {
		return
	}
	err := e.call(ctx, PlatformPrimary, "add to playlist", func(ctx context.Context) error {
		return e.primary.AddToPlaylist(ctx, *l.PlaylistID, *v.PrimaryBroadcastID)
	})
	if err != nil {
		e.degrade(res, v.ID, StepPrimaryPlaylist, PlatformPrimary, err)
	}
}

func (e *Engine) attachAlbum(ctx context.Context, res *Result, l *models.Lesson, v *models.Video) {
	if l.AlbumID == nil || v.SecondaryVideoID == nil || e.secondary == nil {
		return
	}
	err := e.call(ctx, PlatformSecondary, "add to album", func(ctx context.Context) error {
		return e.secondary.AddToAlbum(ctx, *l.AlbumID, *v.SecondaryVideoID)
	})
	if err != nil {
		e.degrade(res, v.ID, StepSecondaryAlbum, PlatformSecondary, err)
	}
}
