// Package app assembles the publishing engine from configuration. Both the
// HTTP server and the worker build the same engine.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/config"
	"github.com/kt-lectures/broadcaster/internal/lessons"
	"github.com/kt-lectures/broadcaster/internal/platforms/relay"
	"github.com/kt-lectures/broadcaster/internal/platforms/vk"
	"github.com/kt-lectures/broadcaster/internal/platforms/youtube"
	"github.com/kt-lectures/broadcaster/internal/publishing"
	"github.com/kt-lectures/broadcaster/internal/realtime"
	"github.com/kt-lectures/broadcaster/internal/streams"
	"github.com/kt-lectures/broadcaster/internal/templates"
	"github.com/kt-lectures/broadcaster/internal/thumbnail"
	"github.com/kt-lectures/broadcaster/internal/videos"
	"github.com/kt-lectures/broadcaster/pkg/queue"
	"github.com/kt-lectures/broadcaster/pkg/storage"
)

// Components are the wired building blocks shared by the binaries.
type Components struct {
	Engine    *publishing.Engine
	Lessons   *lessons.Repository
	Videos    *videos.Repository
	Templates *templates.Repository
	RelayKeys *streams.Repository
	Renderer  *thumbnail.Renderer
	Palette   thumbnail.Palette
	Queue     *queue.Queue
	Hub       *realtime.Hub
	// S3 is nil when no thumbnails bucket is configured.
	S3 *storage.S3
}

// Build wires repositories, platform clients, the renderer and the engine.
// The secondary platform and the relay are left out when unconfigured.
func Build(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *goredis.Client, logger *zap.Logger) (*Components, error) {
	c := &Components{
		Lessons:   lessons.NewRepository(pool),
		Videos:    videos.NewRepository(pool),
		Templates: templates.NewRepository(pool),
		RelayKeys: streams.NewRepository(pool),
		Queue:     queue.NewQueue(rdb, logger),
	}

	pubsub := realtime.NewRedisPubSub(rdb, logger)
	c.Hub = realtime.NewHub(logger, pubsub, pubsub)

	c.Palette = thumbnail.DefaultPalette()
	if cfg.Thumbnails.PaletteFile != "" {
		p, err := thumbnail.LoadPalette(cfg.Thumbnails.PaletteFile)
		if err != nil {
			return nil, err
		}
		c.Palette = p
	}

	var images thumbnail.ImageSource
	if cfg.AWS.ThumbnailsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:           cfg.AWS.Region,
			AccessKeyID:      cfg.AWS.AccessKeyID,
			SecretAccessKey:  cfg.AWS.SecretAccessKey,
			ThumbnailsBucket: cfg.AWS.ThumbnailsBucket,
			Endpoint:         cfg.AWS.Endpoint,
			PublicBaseURL:    cfg.AWS.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			c.S3 = s3Client
			images = thumbnail.NewBlobImages(c.Templates, s3Client, s3Client.Bucket())
		}
	}
	renderer, err := thumbnail.NewRenderer(c.Palette, images, logger)
	if err != nil {
		return nil, err
	}
	c.Renderer = renderer

	primary, err := youtube.New(ctx, youtube.Config{
		ClientID:     cfg.Primary.ClientID,
		ClientSecret: cfg.Primary.ClientSecret,
		RefreshToken: cfg.Primary.RefreshToken,
		PlaylistURL:  cfg.Primary.PlaylistURL,
	}, logger.Named("primary"))
	if err != nil {
		return nil, fmt.Errorf("primary platform: %w", err)
	}

	deps := publishing.Deps{
		Videos:     c.Videos,
		Lessons:    c.Lessons,
		Templates:  c.Templates,
		RelayKeys:  c.RelayKeys,
		Primary:    primary,
		Thumbnails: renderer,
		Queue:      c.Queue,
		Notifier:   realtime.NewNotifier(c.Hub),
		Logger:     logger.Named("publishing"),
	}
	if cfg.Secondary.Token != "" {
		deps.Secondary = vk.New(vk.Config{
			Token:   cfg.Secondary.Token,
			GroupID: cfg.Secondary.GroupID,
			Version: cfg.Secondary.Version,
			BaseURL: cfg.Secondary.BaseURL,
			Timeout: cfg.Publishing.CallTimeout,
		}, logger.Named("secondary"))
	} else {
		logger.Warn("secondary platform disabled")
	}
	if cfg.Relay.APIURL != "" {
		deps.Relay = relay.New(relay.Config{
			APIURL:  cfg.Relay.APIURL,
			RTMPURL: cfg.Relay.RTMPURL,
			Timeout: cfg.Relay.Timeout,
		}, logger.Named("relay"))
	} else {
		logger.Warn("relay disabled")
	}

	c.Engine = publishing.New(deps, publishing.Config{
		CallTimeout:      cfg.Publishing.CallTimeout,
		PrimaryIngestURL: cfg.Primary.IngestURL,
		Program:          cfg.Publishing.Program,
		Year:             cfg.Publishing.Year,
	})
	return c, nil
}
