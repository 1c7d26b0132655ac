// Package youtube is the primary platform client built on the YouTube Data API.
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

const (
	defaultPlaylistURL = "https://www.youtube.com/playlist?list="
	// educationCategory is used when an updated video has no category yet.
	educationCategory = "27"
	maxStreams        = 50
)

var (
	broadcastParts = []string{"id", "snippet", "status", "contentDetails"}
	streamParts    = []string{"id", "snippet", "cdn", "status"}
)

// Config holds the OAuth client and the refresh token of the channel owner.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// PlaylistURL prefixes playlist ids in descriptions.
	PlaylistURL string
}

// Client implements the publishing primary platform.
type Client struct {
	svc         *yt.Service
	playlistURL string
	logger      *zap.Logger
}

// New creates a client that refreshes its access token from cfg.RefreshToken.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{yt.YoutubeForceSslScope},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewWithOptions(ctx, cfg, logger, option.WithTokenSource(ts))
}

// NewWithOptions creates a client with explicit API options.
func NewWithOptions(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	if cfg.PlaylistURL == "" {
		cfg.PlaylistURL = defaultPlaylistURL
	}
	return &Client{svc: svc, playlistURL: cfg.PlaylistURL, logger: logger}, nil
}

// mapErr turns API 404s into platforms.ErrNotFound.
func mapErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", gerr.Message, platforms.ErrNotFound)
	}
	return err
}

func privacyStatus(p models.Privacy) string {
	if p == models.PrivacyUnlisted {
		return "unlisted"
	}
	return "public"
}

func toBroadcast(b *yt.LiveBroadcast) *platforms.Broadcast {
	out := &platforms.Broadcast{ID: b.Id}
	if b.Snippet != nil {
		out.Title = b.Snippet.Title
	}
	if b.Status != nil {
		out.Lifecycle = platforms.Lifecycle(b.Status.LifeCycleStatus)
	}
	if b.ContentDetails != nil {
		out.BoundStreamID = b.ContentDetails.BoundStreamId
	}
	return out
}

func toStream(s *yt.LiveStream) platforms.IngestStream {
	out := platforms.IngestStream{ID: s.Id}
	if s.Snippet != nil {
		out.Name = s.Snippet.Title
	}
	if s.Cdn != nil && s.Cdn.IngestionInfo != nil {
		out.Key = s.Cdn.IngestionInfo.StreamName
		out.IngestURL = s.Cdn.IngestionInfo.IngestionAddress
	}
	if s.Status != nil {
		out.Status = s.Status.StreamStatus
		if s.Status.HealthStatus != nil {
			out.Health = s.Status.HealthStatus.Status
		}
	}
	return out
}

// CreateBroadcast schedules a new live broadcast.
func (c *Client) CreateBroadcast(ctx context.Context, d platforms.BroadcastDetails) (*platforms.Broadcast, error) {
	b := &yt.LiveBroadcast{
		Snippet: &yt.LiveBroadcastSnippet{
			Title:              d.Title,
			Description:        d.Description,
			ScheduledStartTime: d.ScheduledStart.UTC().Format(time.RFC3339),
		},
		Status: &yt.LiveBroadcastStatus{
			PrivacyStatus:           privacyStatus(d.Privacy),
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
		ContentDetails: &yt.LiveBroadcastContentDetails{
			EnableAutoStart: false,
			EnableAutoStop:  false,
			MonitorStream:   &yt.MonitorStreamInfo{EnableMonitorStream: googleapi.Bool(true)},
			ForceSendFields: []string{"EnableAutoStart", "EnableAutoStop"},
		},
	}
	created, err := c.svc.LiveBroadcasts.Insert(broadcastParts, b).Context(ctx).Do()
	if err != nil {
		return nil, mapErr(err)
	}
	c.logger.Debug("broadcast created", zap.String("broadcast_id", created.Id))
	return toBroadcast(created), nil
}

// GetBroadcast returns the current lifecycle of a broadcast.
func (c *Client) GetBroadcast(ctx context.Context, id string) (*platforms.Broadcast, error) {
	resp, err := c.svc.LiveBroadcasts.List(broadcastParts).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, mapErr(err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("broadcast %s: %w", id, platforms.ErrNotFound)
	}
	return toBroadcast(resp.Items[0]), nil
}

// TransitionBroadcast requests a lifecycle change (testing, live or complete).
func (c *Client) TransitionBroadcast(ctx context.Context, id string, to platforms.Lifecycle) (*platforms.Broadcast, error) {
	b, err := c.svc.LiveBroadcasts.Transition(string(to), id, broadcastParts).Context(ctx).Do()
	if err != nil {
		return nil, mapErr(err)
	}
	c.logger.Debug("broadcast transition",
		zap.String("broadcast_id", id),
		zap.String("requested", string(to)),
		zap.String("lifecycle", b.Status.LifeCycleStatus))
	return toBroadcast(b), nil
}

// BindStream attaches an ingest stream to a broadcast.
func (c *Client) BindStream(ctx context.Context, broadcastID, streamID string) error {
	_, err := c.svc.LiveBroadcasts.Bind(broadcastID, []string{"id", "contentDetails"}).StreamId(streamID).Context(ctx).Do()
	return mapErr(err)
}

// UpdateVideo rewrites title, description and privacy of any channel video.
func (c *Client) UpdateVideo(ctx context.Context, videoID string, d platforms.BroadcastDetails) error {
	resp, err := c.svc.Videos.List([]string{"snippet", "status"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return mapErr(err)
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("video %s: %w", videoID, platforms.ErrNotFound)
	}
	cur := resp.Items[0]
	category := educationCategory
	if cur.Snippet != nil && cur.Snippet.CategoryId != "" {
		category = cur.Snippet.CategoryId
	}
	v := &yt.Video{
		Id: videoID,
		Snippet: &yt.VideoSnippet{
			Title:       d.Title,
			Description: d.Description,
			CategoryId:  category,
		},
		Status: &yt.VideoStatus{PrivacyStatus: privacyStatus(d.Privacy)},
	}
	_, err = c.svc.Videos.Update([]string{"snippet", "status"}, v).Context(ctx).Do()
	return mapErr(err)
}

// UploadThumbnail sets the custom thumbnail of a video.
func (c *Client) UploadThumbnail(ctx context.Context, videoID string, png []byte) error {
	_, err := c.svc.Thumbnails.Set(videoID).Media(bytes.NewReader(png), googleapi.ContentType("image/png")).Context(ctx).Do()
	return mapErr(err)
}

// CreatePlaylist creates a playlist and returns its id.
func (c *Client) CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error) {
	p := &yt.Playlist{
		Snippet: &yt.PlaylistSnippet{Title: title, Description: description},
		Status:  &yt.PlaylistStatus{PrivacyStatus: privacyStatus(privacy)},
	}
	created, err := c.svc.Playlists.Insert([]string{"snippet", "status"}, p).Context(ctx).Do()
	if err != nil {
		return "", mapErr(err)
	}
	return created.Id, nil
}

// AddToPlaylist appends a video to a playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, videoID string) error {
	item := &yt.PlaylistItem{
		Snippet: &yt.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &yt.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}
	_, err := c.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
	return mapErr(err)
}

// PlaylistURL is the public link of a playlist.
func (c *Client) PlaylistURL(playlistID string) string {
	return c.playlistURL + playlistID
}

// ListStreams returns the channel's ingest streams.
func (c *Client) ListStreams(ctx context.Context) ([]platforms.IngestStream, error) {
	resp, err := c.svc.LiveStreams.List(streamParts).Mine(true).MaxResults(maxStreams).Context(ctx).Do()
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]platforms.IngestStream, 0, len(resp.Items))
	for _, s := range resp.Items {
		out = append(out, toStream(s))
	}
	return out, nil
}

// GetStream returns one ingest stream.
func (c *Client) GetStream(ctx context.Context, id string) (*platforms.IngestStream, error) {
	resp, err := c.svc.LiveStreams.List(streamParts).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, mapErr(err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("stream %s: %w", id, platforms.ErrNotFound)
	}
	s := toStream(resp.Items[0])
	return &s, nil
}

// CreateStream creates a reusable RTMP ingest stream.
func (c *Client) CreateStream(ctx context.Context, title string) (*platforms.IngestStream, error) {
	s := &yt.LiveStream{
		Snippet: &yt.LiveStreamSnippet{Title: title},
		Cdn: &yt.CdnSettings{
			IngestionType: "rtmp",
			Resolution:    "variable",
			FrameRate:     "variable",
		},
		ContentDetails: &yt.LiveStreamContentDetails{IsReusable: true},
	}
	created, err := c.svc.LiveStreams.Insert(streamParts, s).Context(ctx).Do()
	if err != nil {
		return nil, mapErr(err)
	}
	out := toStream(created)
	return &out, nil
}
