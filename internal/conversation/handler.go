package conversation

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/apierr"
	"github.com/kt-lectures/broadcaster/internal/middleware"
	"github.com/kt-lectures/broadcaster/pkg/response"
)

// MessageRequest is the body for POST /chat/messages.
type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// Handler exposes the dialogue over HTTP.
type Handler struct {
	dialogue *Dialogue
	logger   *zap.Logger
}

func NewHandler(d *Dialogue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dialogue: d, logger: logger}
}

// Message handles POST /chat/messages. Sessions are keyed by the admin id
// taken from the JWT.
func (h *Handler) Message(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	adminID, ok := c.Get(middleware.ContextAdminID)
	if !ok {
		response.Unauthorized(c, "missing admin context")
		return
	}
	reply, err := h.dialogue.Handle(c.Request.Context(), fmt.Sprint(adminID), req.Text)
	if err != nil {
		apierr.Write(c, h.logger, err)
		return
	}
	response.OK(c, reply)
}
