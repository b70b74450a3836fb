package service

import (
	"context"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uid string, err error)
}
