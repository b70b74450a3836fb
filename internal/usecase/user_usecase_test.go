package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/adapter/repository/memory"
	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/errors"
)

func TestCreateProfile(t *testing.T) {
	uc := NewUserUseCase(memory.NewStore().Users())
	ctx := context.Background()

	user, err := uc.CreateProfile(ctx, "uid-1", CreateProfileInput{
		Email:           "rina@example.com",
		FullName:        " Rina Wijaya ",
		Role:            entity.RoleAgent,
		Specializations: []string{"schengen", "student"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rina Wijaya", user.FullName)
	assert.Equal(t, UserStatusActive, user.Status)

	_, err = uc.CreateProfile(ctx, "uid-1", CreateProfileInput{FullName: "Rina", Role: entity.RoleAgent})
	assert.True(t, errors.Is(err, errors.CodeConflict), "got %v", err)

	_, err = uc.CreateProfile(ctx, "uid-2", CreateProfileInput{FullName: "Root", Role: entity.RoleAdmin})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)

	_, err = uc.CreateProfile(ctx, "uid-2", CreateProfileInput{Role: entity.RoleClient})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)
}

func TestUpdateProfile(t *testing.T) {
	uc := NewUserUseCase(memory.NewStore().Users())
	ctx := context.Background()

	_, err := uc.CreateProfile(ctx, "client-uid", CreateProfileInput{FullName: "Budi", Role: entity.RoleClient})
	require.NoError(t, err)
	_, err = uc.CreateProfile(ctx, "agent-uid", CreateProfileInput{FullName: "Sari", Role: entity.RoleAgent})
	require.NoError(t, err)

	updated, err := uc.UpdateProfile(ctx, "client-uid", UpdateProfileInput{
		Country:       "ID",
		LicenseNumber: "LIC-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Budi", updated.FullName)
	assert.Equal(t, "ID", updated.Country)
	assert.Empty(t, updated.LicenseNumber)

	updated, err = uc.UpdateProfile(ctx, "agent-uid", UpdateProfileInput{LicenseNumber: "LIC-2"})
	require.NoError(t, err)
	assert.Equal(t, "LIC-2", updated.LicenseNumber)

	stored, err := uc.GetUserProfile(ctx, "agent-uid")
	require.NoError(t, err)
	assert.Equal(t, "LIC-2", stored.LicenseNumber)

	_, err = uc.UpdateProfile(ctx, "missing", UpdateProfileInput{FullName: "x"})
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
}
