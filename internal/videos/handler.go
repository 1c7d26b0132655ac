package videos

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

// Service is the video side of the publishing engine.
type Service interface {
	CreateVideo(ctx context.Context, lessonID uuid.UUID) (*models.Video, error)
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context, lessonID uuid.UUID) ([]models.Video, error)
	Status(ctx context.Context, videoID uuid.UUID) (*publishing.VideoStatus, error)
	Thumbnail(ctx context.Context, videoID uuid.UUID) ([]byte, error)

	ScheduleStream(ctx context.Context, videoID uuid.UUID) (*publishing.Result, error)
	StartTesting(ctx context.Context, videoID uuid.UUID) (*publishing.Result, error)
	StartStreaming(ctx context.Context, videoID uuid.UUID) (*publishing.Result, error)
	RequestStop(ctx context.Context, videoID uuid.UUID) (*publishing.StopPrompt, error)
	ConfirmStop(ctx context.Context, videoID uuid.UUID) (*publishing.Result, error)
	ApplyTemplateToExternalVideo(ctx context.Context, videoID uuid.UUID, p publishing.Platform, externalID string) (*publishing.Result, error)

	EditLectureNumber(ctx context.Context, videoID uuid.UUID, number string) (*models.Video, error)
	EditCustomTitle(ctx context.Context, videoID uuid.UUID, title, label string) (*models.Video, error)
	UseTemplateTitle(ctx context.Context, videoID uuid.UUID) (*models.Video, error)
}

// ApplyTemplateRequest is the body for POST /videos/:id/apply-template.
type ApplyTemplateRequest struct {
	Platform   publishing.Platform `json:"platform" binding:"required"`
	ExternalID string              `json:"external_id" binding:"required"`
}

// EditRequest is the body for PATCH /videos/:id. CustomTitle requires
// ThumbnailLabel; UseTemplate rebuilds the title from the lesson.
type EditRequest struct {
	LectureNumber  *string `json:"lecture_number"`
	CustomTitle    *string `json:"custom_title"`
	ThumbnailLabel *string `json:"thumbnail_label"`
	UseTemplate    bool    `json:"use_template"`
}

// VideoView is a video with the actions the console can offer for it.
type VideoView struct {
	*models.Video
	Actions []publishing.Action `json:"actions"`
}

// ResultView is the outcome of a state transition.
type ResultView struct {
	Video    VideoView                `json:"video"`
	Degraded []publishing.StepFailure `json:"degraded,omitempty"`
	Pending  bool                     `json:"pending,omitempty"`
}

// Handler handles video HTTP endpoints.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// NewHandler creates a video handler.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func view(v *models.Video) VideoView {
	return VideoView{Video: v, Actions: publishing.AllowedActions(v.State)}
}

// Create handles POST /lessons/:id/videos.
func (h *Handler) Create(c *gin.Context) {
	lessonID, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.CreateVideo(c.Request.Context(), lessonID)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.Created(c, view(v))
}

// ListByLesson handles GET /lessons/:id/videos.
func (h *Handler) ListByLesson(c *gin.Context) {
	lessonID, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListVideos(c.Request.Context(), lessonID)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	out := make([]VideoView, 0, len(list))
	for i := range list {
		out = append(out, view(&list[i]))
	}
	response.OK(c, out)
}

// Get handles GET /videos/:id.
func (h *Handler) Get(c *gin.Context) {
	h.edit(c, h.svc.GetVideo)
}

// Status handles GET /videos/:id/status.
func (h *Handler) Status(c *gin.Context) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, st)
}

// Thumbnail handles GET /videos/:id/thumbnail.
func (h *Handler) Thumbnail(c *gin.Context) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	png, err := h.svc.Thumbnail(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.PNG(c, png)
}

// Schedule handles POST /videos/:id/schedule.
func (h *Handler) Schedule(c *gin.Context) { h.transition(c, h.svc.ScheduleStream) }

// StartTesting handles POST /videos/:id/testing.
func (h *Handler) StartTesting(c *gin.Context) { h.transition(c, h.svc.StartTesting) }

// StartStreaming handles POST /videos/:id/streaming.
func (h *Handler) StartStreaming(c *gin.Context) { h.transition(c, h.svc.StartStreaming) }

// ConfirmStop handles POST /videos/:id/stop/confirm.
func (h *Handler) ConfirmStop(c *gin.Context) { h.transition(c, h.svc.ConfirmStop) }

// RequestStop handles POST /videos/:id/stop. Nothing changes until the
// prompt is confirmed.
func (h *Handler) RequestStop(c *gin.Context) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.RequestStop(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, p)
}

// ApplyTemplate handles POST /videos/:id/apply-template.
func (h *Handler) ApplyTemplate(c *gin.Context) {
	var req ApplyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.Platform.Valid() {
		response.BadRequest(c, "platform must be primary or secondary")
		return
	}
	h.transition(c, func(ctx context.Context, id uuid.UUID) (*publishing.Result, error) {
		return h.svc.ApplyTemplateToExternalVideo(ctx, id, req.Platform, req.ExternalID)
	})
}

// Update handles PATCH /videos/:id.
func (h *Handler) Update(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	switch {
	case req.UseTemplate:
		h.edit(c, h.svc.UseTemplateTitle)
	case req.CustomTitle != nil:
		if req.ThumbnailLabel == nil {
			response.BadRequest(c, "thumbnail_label is required with custom_title")
			return
		}
		h.edit(c, func(ctx context.Context, id uuid.UUID) (*models.Video, error) {
			return h.svc.EditCustomTitle(ctx, id, *req.CustomTitle, *req.ThumbnailLabel)
		})
	case req.LectureNumber != nil:
		h.edit(c, func(ctx context.Context, id uuid.UUID) (*models.Video, error) {
			return h.svc.EditLectureNumber(ctx, id, *req.LectureNumber)
		})
	default:
		response.BadRequest(c, "nothing to update")
	}
}

func (h *Handler) edit(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*models.Video, error)) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	v, err := fn(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, view(v))
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*publishing.Result, error)) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	if len(res.Degraded) > 0 {
		h.logger.Warn("transition degraded",
			zap.String("video_id", id.String()),
			zap.String("state", string(res.Video.State)),
			zap.Int("failed_steps", len(res.Degraded)),
		)
	}
	response.OK(c, ResultView{Video: view(res.Video), Degraded: res.Degraded, Pending: res.Pending})
}
