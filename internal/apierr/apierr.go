// Package apierr maps domain errors onto the response envelope.
package apierr

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/internal/publishing"
	"github.com/kt-lectures/broadcaster/pkg/response"
)

// Write sends the response matching err. Unknown errors are logged and
// reported as 500 without their message.
func Write(c *gin.Context, logger *zap.Logger, err error) {
	var pe *publishing.PlatformError
	switch {
	case errors.Is(err, publishing.ErrWrongState):
		response.Ignored(c, err.Error())
	case errors.Is(err, publishing.ErrExternalNotFound), errors.Is(err, models.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, models.ErrDuplicateKey):
		response.Conflict(c, err.Error())
	case errors.Is(err, publishing.ErrStopRejected),
		errors.Is(err, publishing.ErrPreconditionFailed),
		errors.Is(err, publishing.ErrNoStreamKey),
		errors.Is(err, publishing.ErrInvalidTerm),
		errors.Is(err, models.ErrLectureNumberFloor),
		errors.Is(err, models.ErrInvalidStreamKey):
		response.Unprocessable(c, err.Error())
	case errors.Is(err, publishing.ErrPlatformDisabled), errors.Is(err, publishing.ErrKeyspaceExhausted):
		response.ServiceUnavailable(c, err.Error())
	case errors.As(err, &pe):
		if logger != nil {
			logger.Warn("platform call failed",
				zap.String("platform", string(pe.Platform)),
				zap.String("op", pe.Op),
				zap.Bool("transient", pe.Transient),
				zap.Error(pe.Err))
		}
		response.BadGateway(c, err.Error())
	default:
		if logger != nil {
			logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		response.Internal(c, "internal error")
	}
}

// ParamID parses the uuid path parameter name, answering 400 when it is malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
