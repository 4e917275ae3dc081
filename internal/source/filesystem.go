package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"hlscache/internal/fileutil"
	"hlscache/internal/logging"
	"hlscache/internal/services"
)

// Filesystem copies sources from a local directory tree.
type Filesystem struct {
	root   string
	logger *slog.Logger
}

// NewFilesystem returns a fetcher rooted at root.
func NewFilesystem(root string, logger *slog.Logger) *Filesystem {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Filesystem{root: root, logger: logger}
}

// Name implements Fetcher.
func (f *Filesystem) Name() string { return "filesystem" }

// Root returns the source directory.
func (f *Filesystem) Root() string { return f.root }

// Locate implements Fetcher. The location is the source file itself.
func (f *Filesystem) Locate(key string) (string, bool) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", false
	}
	return filepath.Join(f.root, filepath.FromSlash(cleaned)), true
}

// Fetch copies root/key byte for byte into dest.
func (f *Filesystem) Fetch(ctx context.Context, key, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, ok := f.Locate(key)
	if !ok {
		return services.Wrap(services.ErrValidation, "source", "filesystem fetch", "invalid key "+key, nil)
	}
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "source", "filesystem fetch", src, err)
		}
		return services.Wrap(services.ErrTransient, "source", "filesystem fetch", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return services.Wrap(services.ErrTransient, "source", "filesystem fetch", src, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrNotFound, "source", "filesystem fetch", src+" is a directory", nil)
	}

	written, err := fileutil.WriteAtomic(dest, in, 0o644)
	if err != nil {
		return services.Wrap(services.ErrTransient, "source", "filesystem fetch", key, err)
	}
	f.logger.Debug("source copied",
		logging.String("key", key),
		logging.String("source", src),
		logging.String("destination", dest),
		logging.Int64("bytes", written),
	)
	return nil
}
