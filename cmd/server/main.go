// Package main runs the lecture broadcast console HTTP server with WebSocket
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kt-lectures/broadcaster/config"
	"github.com/kt-lectures/broadcaster/internal/app"
	"github.com/kt-lectures/broadcaster/internal/auth"
	"github.com/kt-lectures/broadcaster/internal/conversation"
	"github.com/kt-lectures/broadcaster/internal/lessons"
	"github.com/kt-lectures/broadcaster/internal/middleware"
	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/realtime"
	"github.com/kt-lectures/broadcaster/internal/streams"
	"github.com/kt-lectures/broadcaster/internal/templates"
	"github.com/kt-lectures/broadcaster/internal/videos"
	"github.com/kt-lectures/broadcaster/pkg/database"
	"github.com/kt-lectures/broadcaster/pkg/redis"
	"github.com/kt-lectures/broadcaster/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	comp, err := app.Build(ctx, cfg, pool, rdb.Client, logger)
	if err != nil {
		logger.Fatal("wire engine", zap.Error(err))
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	if err := auth.Bootstrap(ctx, authRepo, cfg.Admin.OwnerLogin, cfg.Admin.OwnerPassword, logger); err != nil {
		logger.Fatal("bootstrap owner", zap.Error(err))
	}
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	lessonHandler := lessons.NewHandler(comp.Engine, logger)
	videoHandler := videos.NewHandler(comp.Engine, logger)
	streamHandler := streams.NewHandler(comp.Engine, comp.RelayKeys, logger)

	var blobs templates.Blobs
	if comp.S3 != nil {
		blobs = comp.S3
	}
	templateHandler := templates.NewHandler(comp.Templates, comp.Renderer, blobs, comp.Palette, logger)

	dialogue := conversation.NewDialogue(comp.Engine, conversation.NewMemoryStore(cfg.Server.ChatSessionTTL), logger.Named("chat"))
	chatHandler := conversation.NewHandler(dialogue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Admins (owner only)
		api.GET("/admins", middleware.RequireRole(models.RoleOwner), authHandler.List)
		api.POST("/admins", middleware.RequireRole(models.RoleOwner), authHandler.Create)

		// Lessons
		api.GET("/lessons", lessonHandler.List)
		api.POST("/lessons", lessonHandler.Create)
		api.GET("/lessons/:id", lessonHandler.Get)
		api.PATCH("/lessons/:id", lessonHandler.Update)
		api.POST("/lessons/:id/number", lessonHandler.ChangeNumber)
		api.POST("/lessons/:id/playlist", lessonHandler.CreatePlaylist)
		api.POST("/lessons/:id/album", lessonHandler.CreateAlbum)
		api.PUT("/lessons/:id/stream-key", lessonHandler.SetStreamKey)
		api.GET("/lessons/:id/videos", videoHandler.ListByLesson)
		api.POST("/lessons/:id/videos", videoHandler.Create)

		// Videos
		api.GET("/videos/:id", videoHandler.Get)
		api.PATCH("/videos/:id", videoHandler.Update)
		api.GET("/videos/:id/status", videoHandler.Status)
		api.GET("/videos/:id/thumbnail", videoHandler.Thumbnail)
		api.POST("/videos/:id/schedule", videoHandler.Schedule)
		api.POST("/videos/:id/testing", videoHandler.StartTesting)
		api.POST("/videos/:id/streaming", videoHandler.StartStreaming)
		api.POST("/videos/:id/stop", videoHandler.RequestStop)
		api.POST("/videos/:id/stop/confirm", videoHandler.ConfirmStop)
		api.POST("/videos/:id/apply-template", videoHandler.ApplyTemplate)

		// Thumbnails
		api.GET("/templates", templateHandler.List)
		api.POST("/templates", templateHandler.Create)
		api.GET("/templates/:id", templateHandler.Get)
		api.PATCH("/templates/:id", templateHandler.Update)
		api.GET("/templates/:id/preview", templateHandler.Preview)
		api.GET("/images", templateHandler.ListImages)
		api.POST("/images", templateHandler.UploadImage)

		// Ingest streams
		api.GET("/streams", streamHandler.List)
		api.POST("/streams", streamHandler.Create)
		api.GET("/streams/relay-keys", streamHandler.ListRelayKeys)

		// Chat
		api.POST("/chat/messages", chatHandler.Message)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(comp.Hub, logger, jwtService.AdminID))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
