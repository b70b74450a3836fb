package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken checks a Firebase ID token and returns its uid.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

// Email returns the email Firebase holds for uid, used to seed a new profile.
func (f *FirebaseAuthClient) Email(ctx context.Context, uid string) (string, error) {
	user, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
