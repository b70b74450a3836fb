package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

const usersCollection = "users"

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) Create(ctx context.Context, user *entity.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.client.Collection(usersCollection).Doc(user.ID).Create(ctx, user)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("User already exists")
		}
		return errors.Internal("Failed to create user", err)
	}
	return nil
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return getDoc[entity.User](ctx, r.client.Collection(usersCollection).Doc(id), "User")
}

func (r *firestoreUserRepository) Update(ctx context.Context, user *entity.User) error {
	user.UpdatedAt = time.Now()

	updateData := map[string]interface{}{
		"fullName":        user.FullName,
		"phone":           user.Phone,
		"organization":    user.Organization,
		"country":         user.Country,
		"bio":             user.Bio,
		"specializations": user.Specializations,
		"licenseNumber":   user.LicenseNumber,
		"photoURL":        user.PhotoURL,
		"lastSeen":        user.LastSeen,
		"updatedAt":       user.UpdatedAt,
	}

	// Skip empty values so a partial update never blanks stored fields.
	clean := make(map[string]interface{})
	for key, value := range updateData {
		switch v := value.(type) {
		case string:
			if v == "" {
				continue
			}
		case time.Time:
			if v.IsZero() {
				continue
			}
		case []string:
			if len(v) == 0 {
				continue
			}
		}
		clean[key] = value
	}

	_, err := r.client.Collection(usersCollection).Doc(user.ID).Set(ctx, clean, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update user", err)
	}
	return nil
}

func (r *firestoreUserRepository) ListByRole(ctx context.Context, role string, limit int) ([]*entity.User, error) {
	query := r.client.Collection(usersCollection).Where("role", "==", role)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return collect[entity.User](query.Documents(ctx), "users")
}
