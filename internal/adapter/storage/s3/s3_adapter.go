package s3

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// S3Storage is the media store for listing images. Objects are never deleted
// by the service; orphan collection only removes image records.
type S3Storage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	logger     *logger.Logger
}

type Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

func NewS3Storage(ctx context.Context, opts Options, log *logger.Logger) (*S3Storage, error) {
	log.Info("Initializing S3 MinIO Storage", "endpoint", opts.Endpoint, "bucket", opts.Bucket, "use_ssl", opts.UseSSL)

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", opts.Endpoint, err)
	}

	if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, opts.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("make bucket %s: %v (exists check: %v)", opts.Bucket, err, existsErr)
		}
		log.Info("S3Storage: bucket already exists", "bucket", opts.Bucket)
	}

	return &S3Storage{
		client:     client,
		bucket:     opts.Bucket,
		publicBase: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:     log.Named("S3Storage"),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]`)
var whitespace = regexp.MustCompile(`\s+`)

// SafeName lower-cases a file name, turns whitespace into dashes and drops
// anything outside [a-z0-9._-].
func SafeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespace.ReplaceAllString(s, "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" || strings.Trim(s, ".") == "" {
		return "image"
	}
	return s
}

func ObjectKey(listingID, fileName string) string {
	return fmt.Sprintf("annonces/%s/%s-%s", listingID, uuid.NewString(), SafeName(fileName))
}

func (s *S3Storage) objectURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, key)
}

func (s *S3Storage) Upload(ctx context.Context, listingID string, file domain.UploadFile) (string, error) {
	key := ObjectKey(listingID, file.Name)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType:  file.ContentType,
		UserMetadata: map[string]string{"original-filename": SafeName(file.Name)},
	})
	if err != nil {
		s.logger.Error("S3Storage.Upload: PutObject failed", "bucket", s.bucket, "key", key, "error", err)
		return "", fmt.Errorf("%w: upload %s: %v", domain.ErrStorage, key, err)
	}

	s.logger.Debug("S3Storage.Upload: object stored", "key", info.Key, "etag", info.ETag, "size", info.Size)
	return s.objectURL(key), nil
}
