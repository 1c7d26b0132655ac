package lessons

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/apierr"
	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/publishing"
	"github.com/kt-lectures/broadcaster/pkg/response"
)

// Service is the lesson side of the publishing engine.
type Service interface {
	CreateLesson(ctx context.Context, in publishing.LessonInput) (*models.Lesson, error)
	GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	ListLessons(ctx context.Context) ([]models.Lesson, error)
	UpdateLessonSettings(ctx context.Context, id uuid.UUID, s publishing.LessonSettings) (*models.Lesson, error)
	ChangeLectureNumber(ctx context.Context, id uuid.UUID, forward bool) (*models.Lesson, error)
	CreatePrimaryPlaylist(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	CreateSecondaryAlbum(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	SetDirectStreamKey(ctx context.Context, lessonID uuid.UUID, streamID string) (*models.Lesson, error)
	SetRelayStreamKey(ctx context.Context, lessonID uuid.UUID) (*models.Lesson, error)
	DescriptionFull(l *models.Lesson) string
}

// NumberRequest is the body for POST /lessons/:id/number.
type NumberRequest struct {
	Delta int `json:"delta" binding:"required,oneof=1 -1"`
}

// StreamKeyRequest is the body for PUT /lessons/:id/stream-key. Exactly one
// of the fields is set.
type StreamKeyRequest struct {
	StreamID string `json:"stream_id"`
	Relay    bool   `json:"relay"`
}

// LessonView is a lesson with its rendered description.
type LessonView struct {
	*models.Lesson
	NextLectureNumber string `json:"next_lecture_number"`
	DescriptionFull   string `json:"description_full"`
}

// Handler handles lesson HTTP endpoints.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// NewHandler creates a lesson handler.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) view(l *models.Lesson) LessonView {
	return LessonView{Lesson: l, NextLectureNumber: l.NextLectureNumber(), DescriptionFull: h.svc.DescriptionFull(l)}
}

// Create handles POST /lessons.
func (h *Handler) Create(c *gin.Context) {
	var req publishing.LessonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	l, err := h.svc.CreateLesson(c.Request.Context(), req)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.Created(c, h.view(l))
}

// List handles GET /lessons.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListLessons(c.Request.Context())
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	out := make([]LessonView, 0, len(list))
	for i := range list {
		out = append(out, h.view(&list[i]))
	}
	response.OK(c, out)
}

// Get handles GET /lessons/:id.
func (h *Handler) Get(c *gin.Context) {
	h.respond(c, func(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
		return h.svc.GetLesson(ctx, id)
	})
}

// Update handles PATCH /lessons/:id.
func (h *Handler) Update(c *gin.Context) {
	var req publishing.LessonSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c, func(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
		return h.svc.UpdateLessonSettings(ctx, id, req)
	})
}

// ChangeNumber handles POST /lessons/:id/number.
func (h *Handler) ChangeNumber(c *gin.Context) {
	var req NumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "delta must be 1 or -1")
		return
	}
	h.respond(c, func(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
		return h.svc.ChangeLectureNumber(ctx, id, req.Delta > 0)
	})
}

// CreatePlaylist handles POST /lessons/:id/playlist.
func (h *Handler) CreatePlaylist(c *gin.Context) {
	h.respond(c, h.svc.CreatePrimaryPlaylist)
}

// CreateAlbum handles POST /lessons/:id/album.
func (h *Handler) CreateAlbum(c *gin.Context) {
	h.respond(c, h.svc.CreateSecondaryAlbum)
}

// SetStreamKey handles PUT /lessons/:id/stream-key.
func (h *Handler) SetStreamKey(c *gin.Context) {
	var req StreamKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Relay == (req.StreamID != "") {
		response.BadRequest(c, "set either stream_id or relay")
		return
	}
	h.respond(c, func(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
		if req.Relay {
			return h.svc.SetRelayStreamKey(ctx, id)
		}
		return h.svc.SetDirectStreamKey(ctx, id, req.StreamID)
	})
}

func (h *Handler) respond(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*models.Lesson, error)) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	l, err := fn(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, h.view(l))
}
