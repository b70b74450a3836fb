package handler

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/infrastructure/token"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/response"
)

// DevTokenHandler mints HS256 tokens so the API can be driven without a
// Firebase project. It is only routed in development.
type DevTokenHandler struct {
	tokens   *token.JWTManager
	userRepo repository.UserRepository
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(tokens *token.JWTManager, userRepo repository.UserRepository) *DevTokenHandler {
	return &DevTokenHandler{
		tokens:   tokens,
		userRepo: userRepo,
	}
}

func SetupDevTokenHandler(tokens *token.JWTManager, userRepo repository.UserRepository) {
	devTokenHandler = NewDevTokenHandler(tokens, userRepo)
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

type devTokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// GenerateToken issues a token for any user id. The user may not have a
// profile yet, which is how a fresh account is simulated.
func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	role := ""
	user, err := h.userRepo.GetByID(c.Request().Context(), req.UserID)
	switch {
	case err == nil:
		role = user.Role
	case !errors.Is(err, errors.CodeNotFound):
		return response.Error(c, err)
	}

	return h.issue(c, req.UserID, role, user)
}

// GenerateRoleToken issues a token for the first user holding the role.
func (h *DevTokenHandler) GenerateRoleToken(c echo.Context) error {
	role := c.Param("role")
	if !entity.ValidRole(role) {
		return response.Error(c, errors.BadRequest("Unknown role", nil))
	}

	users, err := h.userRepo.ListByRole(c.Request().Context(), role, 1)
	if err != nil {
		return response.Error(c, err)
	}
	if len(users) == 0 {
		return response.Error(c, errors.NotFound("User with role "+role, nil))
	}

	return h.issue(c, users[0].ID, role, users[0])
}

func (h *DevTokenHandler) issue(c echo.Context, uid, role string, user *entity.User) error {
	signed, expiresAt, err := h.tokens.Issue(uid, role)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to issue token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":      signed,
		"expires_at": expiresAt,
		"user":       user,
	})
}
