package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const objectPrefix = "images/"

// S3Storage keeps listing images in a MinIO (S3 compatible) bucket.
type S3Storage struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

func NewS3Storage(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) (*S3Storage, error) {
	log.Info("Initializing S3 MinIO Storage", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "use_ssl", cfg.UseSSL)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Error("S3Storage: failed to create MinIO client", "endpoint", cfg.Endpoint, "error", err.Error())
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Error("S3Storage: failed to make bucket", "bucket", cfg.Bucket, "error", err.Error())
			return nil, fmt.Errorf("failed to make bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("S3Storage: bucket created", "bucket", cfg.Bucket)
	}

	return &S3Storage{client: client, bucket: cfg.Bucket, logger: log}, nil
}

// ObjectKey derives a unique object key that keeps the extension of the original file.
func ObjectKey(originalFileName string) string {
	ext := strings.ToLower(filepath.Ext(originalFileName))
	return objectPrefix + uuid.New().String() + ext
}

// Upload stores data and returns the public URL of the object.
func (s *S3Storage) Upload(ctx context.Context, originalFileName string, data []byte) (string, error) {
	objectKey := ObjectKey(originalFileName)
	contentType := http.DetectContentType(data)

	s.logger.Info("S3Storage.Upload: attempting to upload file",
		"bucket", s.bucket,
		"object_key", objectKey,
		"original_filename", originalFileName,
		"content_type", contentType,
		"size_bytes", len(data))

	info, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-filename": filepath.Base(originalFileName)},
	})
	if err != nil {
		s.logger.Error("S3Storage.Upload: PutObject failed", "bucket", s.bucket, "key", objectKey, "error", err.Error())
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", objectKey, s.bucket, err)
	}

	fileURL := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, info.Key)
	s.logger.Info("S3Storage.Upload: file uploaded successfully", "key", info.Key, "etag", info.ETag, "url", fileURL)
	return fileURL, nil
}
