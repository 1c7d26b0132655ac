package publishing

import (
	"context"

	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

// VideoStore persists videos. ReplaceVideo only succeeds while the stored
// row is still in state expected and returns models.ErrStaleWrite otherwise.
type VideoStore interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	InsertVideo(ctx context.Context, v *models.Video) error
	ReplaceVideo(ctx context.Context, v *models.Video, expected models.VideoState) error
	ListVideosByLesson(ctx context.Context, lessonID uuid.UUID) ([]models.Video, error)
	ListVideosByState(ctx context.Context, state models.VideoState) ([]models.Video, error)
}

// LessonStore persists lessons.
type LessonStore interface {
	GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	ListLessons(ctx context.Context) ([]models.Lesson, error)
	InsertLesson(ctx context.Context, l *models.Lesson) error
	ReplaceLesson(ctx context.Context, l *models.Lesson) error
	ShiftLectureNumber(ctx context.Context, id uuid.UUID, forward bool) (*models.Lesson, error)
}

// TemplateStore reads thumbnail templates.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.ThumbnailsTemplate, error)
}

// RelayKeyStore persists relay keys. InsertRelayKey returns
// models.ErrDuplicateKey when the name is taken.
type RelayKeyStore interface {
	RelayKeyNames(ctx context.Context) ([]string, error)
	InsertRelayKey(ctx context.Context, k *models.RelayKey) error
	ReplaceRelayKey(ctx context.Context, k *models.RelayKey) error
}

// PrimaryPlatform is the main video platform.
type PrimaryPlatform interface {
	CreateBroadcast(ctx context.Context, d platforms.BroadcastDetails) (*platforms.Broadcast, error)
	GetBroadcast(ctx context.Context, id string) (*platforms.Broadcast, error)
	TransitionBroadcast(ctx context.Context, id string, to platforms.Lifecycle) (*platforms.Broadcast, error)
	BindStream(ctx context.Context, broadcastID, streamID string) error
	UpdateVideo(ctx context.Context, videoID string, d platforms.BroadcastDetails) error
	UploadThumbnail(ctx context.Context, videoID string, png []byte) error
	CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error)
	AddToPlaylist(ctx context.Context, playlistID, videoID string) error
	PlaylistURL(playlistID string) string
	ListStreams(ctx context.Context) ([]platforms.IngestStream, error)
	GetStream(ctx context.Context, id string) (*platforms.IngestStream, error)
	CreateStream(ctx context.Context, title string) (*platforms.IngestStream, error)
}

// SecondaryPlatform is the mirror platform fed through the relay.
type SecondaryPlatform interface {
	CreateBroadcast(ctx context.Context, d platforms.BroadcastDetails) (*platforms.SecondaryVideo, error)
	PublishBroadcast(ctx context.Context, videoID string) error
	StopBroadcast(ctx context.Context, videoID string) error
	GetVideo(ctx context.Context, videoID string) (*platforms.SecondaryVideo, error)
	UpdateVideo(ctx context.Context, videoID string, d platforms.BroadcastDetails) error
	UploadThumbnail(ctx context.Context, videoID string, png []byte) error
	CreateAlbum(ctx context.Context, title string, privacy models.Privacy) (string, error)
	AddToAlbum(ctx context.Context, albumID, videoID string) error
	AlbumURL(albumID string) string
}

// Relay fans one incoming stream out to several RTMP targets.
type Relay interface {
	Provision(ctx context.Context, key string, targets []string) error
	AddTarget(ctx context.Context, key, target string) error
	Status(ctx context.Context, key string) (*platforms.RelayStatus, error)
}

// ThumbnailRenderer composes a cover image for a video.
type ThumbnailRenderer interface {
	Render(ctx context.Context, tpl *models.ThumbnailsTemplate, label string) ([]byte, error)
}

// RetryQueue schedules a failed best-effort step for a later attempt.
type RetryQueue interface {
	EnqueueStepRetry(ctx context.Context, videoID uuid.UUID, step string) error
}

// Notifier is told about every persisted video change.
type Notifier interface {
	VideoChanged(ctx context.Context, v *models.Video)
}
