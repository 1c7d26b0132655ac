package templates

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/apierr"
	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/thumbnail"
	"github.com/kt-lectures/broadcaster/pkg/response"
	"github.com/kt-lectures/broadcaster/pkg/storage"
)

// Store is the persistence the handler needs; *Repository implements it.
type Store interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.ThumbnailsTemplate, error)
	ListTemplates(ctx context.Context) ([]models.ThumbnailsTemplate, error)
	CreateTemplate(ctx context.Context, t *models.ThumbnailsTemplate) error
	UpdateTemplate(ctx context.Context, t *models.ThumbnailsTemplate) error
	ListImages(ctx context.Context) ([]models.ThumbnailsImage, error)
	CreateImage(ctx context.Context, img *models.ThumbnailsImage) error
}

// Renderer draws a cover for a template.
type Renderer interface {
	Render(ctx context.Context, tpl *models.ThumbnailsTemplate, label string) ([]byte, error)
}

// Blobs stores prepared base images.
type Blobs interface {
	Bucket() string
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64, publicRead bool) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// TemplateRequest is the body for POST /templates and PATCH /templates/:id.
// On PATCH empty fields keep their stored value.
type TemplateRequest struct {
	Name         string     `json:"name"`
	FirstTitle   string     `json:"first_title"`
	SecondTitle  string     `json:"second_title"`
	LecturerName string     `json:"lecturer_name"`
	TermNumber   string     `json:"term_number"`
	Color        string     `json:"color"`
	ImageID      *uuid.UUID `json:"image_id"`
}

// Handler handles thumbnail templates and base images.
type Handler struct {
	store    Store
	renderer Renderer
	blobs    Blobs
	palette  thumbnail.Palette
	logger   *zap.Logger
}

// NewHandler creates a templates handler. blobs may be nil when no bucket
// is configured; image uploads then answer 503.
func NewHandler(store Store, renderer Renderer, blobs Blobs, palette thumbnail.Palette, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if palette == nil {
		palette = thumbnail.DefaultPalette()
	}
	return &Handler{store: store, renderer: renderer, blobs: blobs, palette: palette, logger: logger}
}

// List handles GET /templates.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListTemplates(c.Request.Context())
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.ThumbnailsTemplate{}
	}
	response.OK(c, list)
}

// Get handles GET /templates/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTemplate(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

// Create handles POST /templates.
func (h *Handler) Create(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t := &models.ThumbnailsTemplate{}
	apply(t, req)
	if t.Name == "" || t.Color == "" {
		response.BadRequest(c, "name and color are required")
		return
	}
	if _, err := h.palette.Color(t.Color); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.CreateTemplate(c.Request.Context(), t); err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.Created(c, t)
}

// Update handles PATCH /templates/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Color != "" {
		if _, err := h.palette.Color(req.Color); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	ctx := c.Request.Context()
	t, err := h.store.GetTemplate(ctx, id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	apply(t, req)
	if err := h.store.UpdateTemplate(ctx, t); err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, t)
}

func apply(t *models.ThumbnailsTemplate, req TemplateRequest) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&t.Name, req.Name)
	set(&t.FirstTitle, req.FirstTitle)
	set(&t.SecondTitle, req.SecondTitle)
	set(&t.LecturerName, req.LecturerName)
	set(&t.TermNumber, req.TermNumber)
	set(&t.Color, req.Color)
	if req.ImageID != nil {
		t.ImageID = req.ImageID
	}
}

// Preview handles GET /templates/:id/preview?label=L1 and returns the PNG.
func (h *Handler) Preview(c *gin.Context) {
	id, ok := apierr.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := h.store.GetTemplate(ctx, id)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	png, err := h.renderer.Render(ctx, t, c.DefaultQuery("label", "L1"))
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.PNG(c, png)
}

// ListImages handles GET /images.
func (h *Handler) ListImages(c *gin.Context) {
	list, err := h.store.ListImages(c.Request.Context())
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.ThumbnailsImage{}
	}
	response.OK(c, list)
}

// UploadImage handles POST /images (multipart: name, file). The upload is
// cropped and scaled to the base image size before it is stored.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.blobs == nil {
		response.ServiceUnavailable(c, "image storage is not configured")
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		response.BadRequest(c, "name is required")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "image is too large")
		return
	}
	if !storage.ValidateImageType(fh.Header.Get("Content-Type"), fh.Filename) {
		response.BadRequest(c, "only JPEG and PNG images are accepted")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	prepared, err := thumbnail.PrepareBaseImage(io.LimitReader(f, storage.MaxImageFileSize))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	bucket := h.blobs.Bucket()
	key := storage.ImageKey(uuid.NewString())
	url, err := h.blobs.Upload(ctx, bucket, key, "image/png", bytes.NewReader(prepared), int64(len(prepared)), false)
	if err != nil {
		h.logger.Error("base image upload failed", zap.String("key", key), zap.Error(err))
		response.BadGateway(c, "upload failed")
		return
	}
	img := &models.ThumbnailsImage{Name: name, ObjectKey: key, URL: url}
	if err := h.store.CreateImage(ctx, img); err != nil {
		if derr := h.blobs.DeleteObject(ctx, bucket, key); derr != nil {
			h.logger.Warn("orphaned base image", zap.String("key", key), zap.Error(derr))
		}
		apierr.Write(c, h.logger, err)
		return
	}
	h.logger.Info("base image stored", zap.String("image_id", img.ID.String()), zap.String("key", key))
	response.Created(c, img)
}
