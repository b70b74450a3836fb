package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"visaconnect/internal/usecase"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/response"
)

// EmailLookup resolves the email the identity provider holds for a user.
type EmailLookup interface {
	Email(ctx context.Context, uid string) (string, error)
}

type UserHandler struct {
	userUseCase *usecase.UserUseCase
	emails      EmailLookup
}

// NewUserHandler accepts a nil lookup, in which case the email must come
// with the request.
func NewUserHandler(userUseCase *usecase.UserUseCase, emails EmailLookup) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
		emails:      emails,
	}
}

type createProfileRequest struct {
	Email           string   `json:"email" validate:"omitempty,email"`
	FullName        string   `json:"full_name" validate:"required,max=120"`
	Role            string   `json:"role" validate:"required,oneof=client agent"`
	Phone           string   `json:"phone" validate:"omitempty,e164"`
	Organization    string   `json:"organization" validate:"max=200"`
	Country         string   `json:"country" validate:"max=100"`
	Bio             string   `json:"bio" validate:"max=500"`
	Specializations []string `json:"specializations" validate:"omitempty,max=20"`
	LicenseNumber   string   `json:"license_number" validate:"max=100"`
}

type updateProfileRequest struct {
	FullName        string   `json:"full_name" validate:"omitempty,max=120"`
	Phone           string   `json:"phone" validate:"omitempty,e164"`
	Organization    string   `json:"organization" validate:"max=200"`
	Country         string   `json:"country" validate:"max=100"`
	Bio             string   `json:"bio" validate:"max=500"`
	Specializations []string `json:"specializations" validate:"omitempty,max=20"`
	LicenseNumber   string   `json:"license_number" validate:"max=100"`
	PhotoURL        string   `json:"photo_url" validate:"omitempty,url"`
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.GetUserProfile(c.Request().Context(), actor.ID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, user)
}

func (h *UserHandler) CreateProfile(c echo.Context) error {
	var req createProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	email := req.Email
	if email == "" && h.emails != nil {
		email, err = h.emails.Email(c.Request().Context(), actor.ID)
		if err != nil {
			logger.Warn("Email lookup for %s failed: %v", actor.ID, err)
		}
	}
	if email == "" {
		return response.Error(c, errors.Validation("Email is required"))
	}

	user, err := h.userUseCase.CreateProfile(c.Request().Context(), actor.ID, usecase.CreateProfileInput{
		Email:           email,
		FullName:        req.FullName,
		Role:            req.Role,
		Phone:           req.Phone,
		Organization:    req.Organization,
		Country:         req.Country,
		Bio:             req.Bio,
		Specializations: req.Specializations,
		LicenseNumber:   req.LicenseNumber,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), actor.ID, usecase.UpdateProfileInput{
		FullName:        req.FullName,
		Phone:           req.Phone,
		Organization:    req.Organization,
		Country:         req.Country,
		Bio:             req.Bio,
		Specializations: req.Specializations,
		LicenseNumber:   req.LicenseNumber,
		PhotoURL:        req.PhotoURL,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, "Profile updated", user)
}
