package usecase

import (
	"context"
	"strings"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

const UserStatusActive = "active"

type UserUseCase struct {
	userRepo repository.UserRepository
}

func NewUserUseCase(userRepo repository.UserRepository) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
	}
}

type CreateProfileInput struct {
	Email           string
	FullName        string
	Role            string
	Phone           string
	Organization    string
	Country         string
	Bio             string
	Specializations []string
	LicenseNumber   string
}

type UpdateProfileInput struct {
	FullName        string
	Phone           string
	Organization    string
	Country         string
	Bio             string
	Specializations []string
	LicenseNumber   string
	PhotoURL        string
}

// CreateProfile registers the profile of a user that already authenticated
// with the identity provider. Admins are provisioned out of band.
func (uc *UserUseCase) CreateProfile(ctx context.Context, userID string, input CreateProfileInput) (*entity.User, error) {
	if input.Role != entity.RoleClient && input.Role != entity.RoleAgent {
		return nil, errors.Validation("Role must be client or agent")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, errors.Validation("Full name is required")
	}

	// Reject a second registration
	if _, err := uc.userRepo.GetByID(ctx, userID); err == nil {
		return nil, errors.Conflict("Profile already exists")
	} else if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	user := &entity.User{
		ID:              userID,
		Email:           input.Email,
		FullName:        strings.TrimSpace(input.FullName),
		Phone:           input.Phone,
		Role:            input.Role,
		Status:          UserStatusActive,
		Organization:    input.Organization,
		Country:         input.Country,
		Bio:             input.Bio,
		Specializations: input.Specializations,
		LicenseNumber:   input.LicenseNumber,
		LastSeen:        time.Now(),
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	// Get existing user
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Update fields if provided
	if input.FullName != "" {
		user.FullName = input.FullName
	}
	if input.Phone != "" {
		user.Phone = input.Phone
	}
	if input.Organization != "" {
		user.Organization = input.Organization
	}
	if input.Country != "" {
		user.Country = input.Country
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}
	if input.PhotoURL != "" {
		user.PhotoURL = input.PhotoURL
	}
	if user.Role == entity.RoleAgent {
		if len(input.Specializations) > 0 {
			user.Specializations = input.Specializations
		}
		if input.LicenseNumber != "" {
			user.LicenseNumber = input.LicenseNumber
		}
	}

	user.UpdatedAt = time.Now()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, errors.Internal("Failed to update user profile", err)
	}

	return user, nil
}

func (uc *UserUseCase) GetUserProfile(ctx context.Context, userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}
