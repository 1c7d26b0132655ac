package streams

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/apierr"
	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/platforms"
	"github.com/kt-lectures/broadcaster/pkg/response"
)

// Ingest lists and creates primary platform ingest streams.
type Ingest interface {
	ListStreams(ctx context.Context) ([]platforms.IngestStream, error)
	CreateStream(ctx context.Context, title string) (*platforms.IngestStream, error)
}

// RelayKeyLister lists relay keys; *Repository implements it.
type RelayKeyLister interface {
	ListRelayKeys(ctx context.Context) ([]models.RelayKey, error)
}

// CreateStreamRequest is the body for POST /streams.
type CreateStreamRequest struct {
	Title string `json:"title" binding:"required"`
}

// Handler handles ingest stream endpoints.
type Handler struct {
	ingest    Ingest
	relayKeys RelayKeyLister
	logger    *zap.Logger
}

func NewHandler(ingest Ingest, relayKeys RelayKeyLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingest: ingest, relayKeys: relayKeys, logger: logger}
}

// List handles GET /streams.
func (h *Handler) List(c *gin.Context) {
	list, err := h.ingest.ListStreams(c.Request.Context())
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	if list == nil {
		list = []platforms.IngestStream{}
	}
	response.OK(c, list)
}

// Create handles POST /streams.
func (h *Handler) Create(c *gin.Context) {
	var req CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.ingest.CreateStream(c.Request.Context(), req.Title)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	h.logger.Info("ingest stream created", zap.String("stream_id", s.ID))
	response.Created(c, s)
}

// ListRelayKeys handles GET /streams/relay-keys.
func (h *Handler) ListRelayKeys(c *gin.Context) {
	list, err := h.relayKeys.ListRelayKeys(c.Request.Context())
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.RelayKey{}
	}
	response.OK(c, list)
}
