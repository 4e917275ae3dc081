package source

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"hlscache/internal/config"
	"hlscache/internal/logging"
	"hlscache/internal/services"
)

// Fetcher retrieves a source file identified by its relative key.
type Fetcher interface {
	// Fetch copies the source for key into dest, creating parent directories.
	Fetch(ctx context.Context, key, dest string) error
	// Locate returns a location the segmenter can read directly without a
	// fetch. ok is false when the backend has no such location.
	Locate(key string) (location string, ok bool)
	// Name identifies the backend in logs.
	Name() string
}

// New builds the fetcher selected by cfg.Input.Type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "new", "configuration is nil", nil)
	}
	logger = logging.NewComponentLogger(logger, "source")
	switch strings.ToLower(strings.TrimSpace(cfg.Input.Type)) {
	case config.InputFilesystem:
		return NewFilesystem(cfg.Input.Filesystem.SourceDir, logger), nil
	case config.InputHTTP:
		return NewHTTP(cfg.Input.HTTP.BaseURL, cfg.FetchTimeout(), logger), nil
	case config.InputS3:
		return NewS3(cfg.Input.S3, cfg.FetchTimeout(), logger)
	case config.InputFTP:
		return nil, services.Wrap(services.ErrConfiguration, "source", "new", "ftp input is not implemented", nil)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "source", "new", fmt.Sprintf("unknown input type %q", cfg.Input.Type), nil)
	}
}

// CleanKey normalizes a relative source key and rejects absolute paths and
// parent traversal.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "source", "key", "empty key", nil)
	}
	if strings.HasPrefix(trimmed, "/") {
		return "", services.Wrap(services.ErrValidation, "source", "key", fmt.Sprintf("absolute key %q", key), nil)
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", services.Wrap(services.ErrValidation, "source", "key", fmt.Sprintf("key %q escapes its root", key), nil)
		}
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return "", services.Wrap(services.ErrValidation, "source", "key", "empty key", nil)
	}
	return cleaned, nil
}
