package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/response"
	"github.com/kt-lectures/broadcaster/pkg/utils"
)

// AdminStore is the part of the repository the handler needs.
type AdminStore interface {
	GetByLogin(ctx context.Context, login string) (*models.Admin, error)
	List(ctx context.Context) ([]models.AdminPublic, error)
	Create(ctx context.Context, login, passwordHash, comment string, role models.Role) (*models.Admin, error)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string             `json:"token"`
	Admin models.AdminPublic `json:"admin"`
}

// CreateAdminRequest is the body for POST /admins.
type CreateAdminRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	Comment  string `json:"comment"`
	Role     string `json:"role"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   AdminStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo AdminStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	admin, err := h.repo.GetByLogin(c.Request.Context(), strings.TrimSpace(req.Login))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			h.logger.Error("load admin", zap.Error(err))
		}
		response.Unauthorized(c, "invalid login or password")
		return
	}
	if !utils.CheckPassword(req.Password, admin.Password) {
		response.Unauthorized(c, "invalid login or password")
		return
	}

	token, err := h.jwt.Generate(admin)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("admin logged in", zap.String("login", admin.Login))
	response.OK(c, TokenResponse{Token: token, Admin: admin.ToPublic()})
}

// List handles GET /admins (owner only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list admins", zap.Error(err))
		response.Internal(c, "failed to list admins")
		return
	}
	response.OK(c, list)
}

// Create handles POST /admins (owner only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role := models.RoleAdmin
	switch req.Role {
	case "", string(models.RoleAdmin):
	case string(models.RoleOwner):
		role = models.RoleOwner
	default:
		response.BadRequest(c, "invalid role")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Internal(c, "failed to hash password")
		return
	}
	admin, err := h.repo.Create(c.Request.Context(), strings.TrimSpace(req.Login), hash, req.Comment, role)
	if errors.Is(err, models.ErrDuplicateKey) {
		response.Conflict(c, "login already taken")
		return
	}
	if err != nil {
		h.logger.Error("create admin", zap.Error(err))
		response.Internal(c, "failed to create admin")
		return
	}
	h.logger.Info("admin created", zap.String("login", admin.Login), zap.String("role", string(admin.Role)))
	response.Created(c, admin.ToPublic())
}

// OwnerBootstrapper inserts the configured owner on startup.
type OwnerBootstrapper interface {
	EnsureOwner(ctx context.Context, login, passwordHash string) (bool, error)
}

// Bootstrap makes sure the configured owner can log in. An empty login
// disables it.
func Bootstrap(ctx context.Context, repo OwnerBootstrapper, login, password string, logger *zap.Logger) error {
	if login == "" {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("bootstrap owner: %w", err)
	}
	created, err := repo.EnsureOwner(ctx, login, hash)
	if err != nil {
		return fmt.Errorf("bootstrap owner: %w", err)
	}
	if created && logger != nil {
		logger.Info("bootstrap owner created", zap.String("login", login))
	}
	return nil
}
