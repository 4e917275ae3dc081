package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"hlscache/internal/config"
	"hlscache/internal/fileutil"
	"hlscache/internal/logging"
	"hlscache/internal/services"
)

// S3 downloads sources from an S3-compatible bucket.
type S3 struct {
	client  *minio.Client
	bucket  string
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewS3 builds an S3 fetcher. No request is made until the first fetch.
func NewS3(cfg config.S3Input, timeout time.Duration, logger *slog.Logger) (*S3, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "s3 client", cfg.Endpoint, err)
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name implements Fetcher.
func (s *S3) Name() string { return "s3" }

// Locate implements Fetcher. Objects have no directly readable location.
func (s *S3) Locate(string) (string, bool) { return "", false }

func (s *S3) objectName(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return path.Join(s.prefix, cleaned), nil
}

// Fetch streams bucket/prefix/key into dest. The fetch timeout bounds the
// wait for the object response and each gap between reads, not the whole
// download.
func (s *S3) Fetch(ctx context.Context, key, dest string) error {
	object, err := s.objectName(key)
	if err != nil {
		return services.Wrap(services.ErrValidation, "source", "s3 fetch", "invalid key "+key, err)
	}
	target := fmt.Sprintf("s3://%s/%s", s.bucket, object)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Debug("downloading source object",
		logging.String("bucket", s.bucket),
		logging.String("object", object),
	)
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return s.classify(target, err)
	}
	defer obj.Close()

	body := newStallGuard(obj, s.timeout, cancel)
	defer body.Stop()
	if _, err := fileutil.WriteAtomic(dest, body, 0o644); err != nil {
		return s.classify(target, err)
	}
	return nil
}

func (s *S3) classify(target string, err error) error {
	var resp minio.ErrorResponse
	switch {
	case errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound):
		return services.Wrap(services.ErrNotFound, "source", "s3 fetch", target, err)
	case isTimeout(err):
		return services.Wrap(services.ErrTimeout, "source", "s3 fetch", fmt.Sprintf("%s after %s", target, s.timeout), err)
	default:
		return services.Wrap(services.ErrTransient, "source", "s3 fetch", target, err)
	}
}
