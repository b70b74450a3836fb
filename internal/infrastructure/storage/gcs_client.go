package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"visaconnect/internal/domain/service"
)

const publicHost = "https://storage.googleapis.com/"

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// ObjectName builds the stored name for an upload: the folder, a fresh id and
// an extension derived from the content type or the original filename.
func ObjectName(folder, filename, contentType string) string {
	name := fmt.Sprintf("%s/%s-%s", strings.Trim(folder, "/"), uuid.New().String(), time.Now().Format("20060102150405"))

	switch contentType {
	case "image/jpeg", "image/jpg":
		return name + ".jpg"
	case "image/png":
		return name + ".png"
	case "application/pdf":
		return name + ".pdf"
	}
	if ext := path.Ext(filename); ext != "" && len(ext) <= 6 {
		return name + strings.ToLower(ext)
	}
	return name + ".bin"
}

func (c *CloudStorageClient) UploadFile(ctx context.Context, file io.Reader, filename, contentType, folder string) (*service.UploadedFile, error) {
	objectName := ObjectName("private/"+folder, filename, contentType)

	obj := c.client.Bucket(c.bucketName).Object(objectName)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.Metadata = map[string]string{"originalName": filename}

	size, err := io.Copy(wc, file)
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("failed to copy file to GCS: %v", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %v", err)
	}

	return &service.UploadedFile{
		URL:        publicHost + c.bucketName + "/" + objectName,
		ObjectName: objectName,
		Size:       size,
	}, nil
}

func (c *CloudStorageClient) DeleteFile(ctx context.Context, fileURL string) error {
	// Expected URL format: https://storage.googleapis.com/bucket-name/file-path
	if !strings.HasPrefix(fileURL, publicHost) {
		return fmt.Errorf("invalid GCS URL format")
	}

	parts := strings.SplitN(strings.TrimPrefix(fileURL, publicHost), "/", 2)
	if len(parts) != 2 || parts[0] != c.bucketName {
		return fmt.Errorf("invalid GCS URL format or bucket mismatch")
	}

	if err := c.client.Bucket(c.bucketName).Object(parts[1]).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
