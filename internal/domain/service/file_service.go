package service

import (
	"context"
	"io"
)

type UploadedFile struct {
	URL        string
	ObjectName string
	Size       int64
}

type FileUploadService interface {
	UploadFile(ctx context.Context, file io.Reader, filename, contentType, folder string) (*UploadedFile, error)
	DeleteFile(ctx context.Context, fileURL string) error
	Close() error
}
