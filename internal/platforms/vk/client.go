// Package vk is the secondary platform client over the VK HTTP API.
package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
)

const (
	DefaultBaseURL = "https://api.vk.com/method/"
	DefaultVersion = "5.199"

	errCodeNotFound     = 104
	errCodeAccessDenied = 15
)

// Config holds the community token and the group that owns every video.
type Config struct {
	Token   string
	GroupID int64
	Version string
	BaseURL string
	Timeout time.Duration
}

// APIError is an error object returned by the VK API.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Client implements the publishing secondary platform.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a VK client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) owner() string { return strconv.FormatInt(-c.cfg.GroupID, 10) }
func (c *Client) group() string { return strconv.FormatInt(c.cfg.GroupID, 10) }

// call posts a form to method and decodes the "response" member into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("access_token", c.cfg.Token)
	params.Set("v", c.cfg.Version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+method, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", method, resp.Status)
	}
	var env struct {
		Response json.RawMessage `json:"response"`
		Error    *APIError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if env.Error != nil {
		c.logger.Debug("vk api error", zap.String("method", method), zap.Int("code", env.Error.Code))
		if env.Error.Code == errCodeNotFound {
			return fmt.Errorf("%s: %w: %w", method, env.Error, platforms.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", method, env.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func privacyView(p models.Privacy) string {
	if p == models.PrivacyUnlisted {
		return "by_link"
	}
	return "all"
}

func albumPrivacy(p models.Privacy) string {
	if p == models.PrivacyUnlisted {
		return "only_me"
	}
	return "all"
}

type streamingResponse struct {
	VideoID int64  `json:"video_id"`
	Name    string `json:"name"`
	Stream  struct {
		URL string `json:"url"`
		Key string `json:"key"`
	} `json:"stream"`
}

func (r *streamingResponse) streamURL() string {
	if r.Stream.URL == "" || r.Stream.Key == "" {
		return ""
	}
	return strings.TrimSuffix(r.Stream.URL, "/") + "/" + r.Stream.Key
}

// CreateBroadcast prepares an unpublished live video in the group.
func (c *Client) CreateBroadcast(ctx context.Context, d platforms.BroadcastDetails) (*platforms.SecondaryVideo, error) {
	params := url.Values{
		"group_id":          {c.group()},
		"name":              {d.Title},
		"description":       {d.Description},
		"publish":           {"0"},
		"wallpost":          {"0"},
		"privacy_view":      {privacyView(d.Privacy)},
		"notify_followers":  {"0"},
		"preparation_check": {"1"},
		"preparation":       {"1"},
	}
	var r streamingResponse
	if err := c.call(ctx, "video.startStreaming", params, &r); err != nil {
		return nil, err
	}
	id := strconv.FormatInt(r.VideoID, 10)
	return &platforms.SecondaryVideo{
		ID:        id,
		Title:     r.Name,
		Status:    platforms.SecondaryDraft,
		StreamURL: r.streamURL(),
		Link:      c.videoLink(id, ""),
	}, nil
}

// PublishBroadcast makes a prepared live video visible.
func (c *Client) PublishBroadcast(ctx context.Context, videoID string) error {
	params := url.Values{"group_id": {c.group()}, "video_id": {videoID}, "publish": {"1"}}
	return c.call(ctx, "video.startStreaming", params, nil)
}

// StopBroadcast ends a live video.
func (c *Client) StopBroadcast(ctx context.Context, videoID string) error {
	params := url.Values{"group_id": {c.group()}, "video_id": {videoID}}
	return c.call(ctx, "video.stopStreaming", params, nil)
}

type videoItem struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	LiveStatus string `json:"live_status"`
	AccessKey  string `json:"access_key"`
}

func secondaryStatus(liveStatus string) string {
	switch liveStatus {
	case "started":
		return platforms.SecondaryLive
	case "finished", "failed":
		return platforms.SecondaryStopped
	}
	return platforms.SecondaryDraft
}

func (c *Client) videoLink(id, accessKey string) string {
	link := "https://vk.com/video" + c.owner() + "_" + id
	if accessKey != "" {
		link += "?list=" + accessKey
	}
	return link
}

// GetVideo returns the current status of a group video.
func (c *Client) GetVideo(ctx context.Context, videoID string) (*platforms.SecondaryVideo, error) {
	params := url.Values{"videos": {c.owner() + "_" + videoID}}
	var r struct {
		Items []videoItem `json:"items"`
	}
	if err := c.call(ctx, "video.get", params, &r); err != nil {
		return nil, err
	}
	if len(r.Items) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, platforms.ErrNotFound)
	}
	it := r.Items[0]
	return &platforms.SecondaryVideo{
		ID:     videoID,
		Title:  it.Title,
		Status: secondaryStatus(it.LiveStatus),
		Link:   c.videoLink(videoID, it.AccessKey),
	}, nil
}

// UpdateVideo rewrites title, description and privacy of a group video.
func (c *Client) UpdateVideo(ctx context.Context, videoID string, d platforms.BroadcastDetails) error {
	params := url.Values{
		"owner_id":     {c.owner()},
		"video_id":     {videoID},
		"name":         {d.Title},
		"desc":         {d.Description},
		"privacy_view": {privacyView(d.Privacy)},
	}
	err := c.call(ctx, "video.edit", params, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == errCodeAccessDenied {
		// VK answers "access denied" for ids outside the group.
		return fmt.Errorf("video %s: %w: %w", videoID, err, platforms.ErrNotFound)
	}
	return err
}

// UploadThumbnail replaces the cover of a group video.
func (c *Client) UploadThumbnail(ctx context.Context, videoID string, png []byte) error {
	var target struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.call(ctx, "video.getThumbUploadUrl", url.Values{"owner_id": {c.owner()}}, &target); err != nil {
		return err
	}
	thumbJSON, err := c.uploadPhoto(ctx, target.UploadURL, png)
	if err != nil {
		return err
	}
	params := url.Values{
		"owner_id":   {c.owner()},
		"video_id":   {videoID},
		"thumb_json": {thumbJSON},
		"thumb_size": {"1"},
		"set_thumb":  {"1"},
	}
	return c.call(ctx, "video.saveUploadedThumb", params, nil)
}

func (c *Client) uploadPhoto(ctx context.Context, uploadURL string, png []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", "thumbnail.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(png); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload thumbnail: unexpected status %s", resp.Status)
	}
	return string(raw), nil
}

// CreateAlbum creates a video album in the group.
func (c *Client) CreateAlbum(ctx context.Context, title string, privacy models.Privacy) (string, error) {
	params := url.Values{"group_id": {c.group()}, "title": {title}, "privacy": {albumPrivacy(privacy)}}
	var r struct {
		AlbumID int64 `json:"album_id"`
	}
	if err := c.call(ctx, "video.addAlbum", params, &r); err != nil {
		return "", err
	}
	return strconv.FormatInt(r.AlbumID, 10), nil
}

// AddToAlbum puts a group video into a group album.
func (c *Client) AddToAlbum(ctx context.Context, albumID, videoID string) error {
	params := url.Values{
		"owner_id":  {c.owner()},
		"target_id": {c.owner()},
		"video_id":  {videoID},
		"album_id":  {albumID},
	}
	return c.call(ctx, "video.addToAlbum", params, nil)
}

// AlbumURL is the public link of an album.
func (c *Client) AlbumURL(albumID string) string {
	return "https://vk.com/video/playlist/" + c.owner() + "_" + albumID
}
