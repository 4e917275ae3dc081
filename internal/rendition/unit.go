package rendition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"hlscache/internal/logging"
	"hlscache/internal/metrics"
	"hlscache/internal/recordstore"
	"hlscache/internal/segmenter"
	"hlscache/internal/services"
)

// Status is the processing state of a Unit.
type Status string

const (
	StatusUnprocessed Status = "unprocessed"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// Unit is one rendition being served for a request.
type Unit struct {
	factory       *Factory
	key           string
	status        Status
	localCopyPath string
	outputDir     string
}

// Key returns the cleaned relative rendition key.
func (u *Unit) Key() string { return u.key }

// Status reports the unit state.
func (u *Unit) Status() Status { return u.status }

// LocalCopyPath is the file handed to the segmenter. Empty until
// EnsureLocalCopy succeeds.
func (u *Unit) LocalCopyPath() string { return u.localCopyPath }

// OutputDir is the directory holding the media playlist and segments.
func (u *Unit) OutputDir() string { return u.outputDir }

// ManifestPath is the media playlist location.
func (u *Unit) ManifestPath() string {
	return filepath.Join(u.outputDir, u.factory.settings.MediaPlaylistName)
}

// EnsureLocalCopy makes the source readable by the segmenter, fetching it
// into the input cache when caching is enabled. A missing source marks the
// unit failed and returns services.ErrNotFound.
func (u *Unit) EnsureLocalCopy(ctx context.Context) error {
	f := u.factory
	logger := logging.WithContext(ctx, f.logger).With(logging.String(logging.FieldRendition, u.key))

	if !f.settings.CacheEnabled {
		location, ok := f.fetcher.Locate(u.key)
		if !ok {
			u.status = StatusFailed
			return services.Wrap(services.ErrConfiguration, "rendition", "ensure local copy",
				fmt.Sprintf("%s input cannot be read in place; enable input caching", f.fetcher.Name()), nil)
		}
		if filepath.IsAbs(location) {
			if _, err := os.Stat(location); err != nil {
				u.status = StatusFailed
				if errors.Is(err, fs.ErrNotExist) {
					return services.Wrap(services.ErrNotFound, "rendition", "ensure local copy", u.key, err)
				}
				return services.Wrap(services.ErrTransient, "rendition", "ensure local copy", u.key, err)
			}
		}
		u.localCopyPath = location
		u.status = StatusReady
		return nil
	}

	cached := filepath.Join(f.settings.InputCacheRoot, filepath.FromSlash(u.key))
	if info, err := os.Stat(cached); err == nil && info.Mode().IsRegular() {
		u.localCopyPath = cached
		u.status = StatusReady
		f.touch(ctx, recordstore.NamespaceInputs, u.key)
		return nil
	}

	logger.Debug("input cache miss", logging.String("path", cached), logging.String("backend", f.fetcher.Name()))
	if err := f.fetcher.Fetch(ctx, u.key, cached); err != nil {
		u.status = StatusFailed
		if errors.Is(err, services.ErrNotFound) {
			f.metrics.SourceFetch(f.fetcher.Name(), "not_found")
			logger.Info("source not found", logging.Error(err))
			return err
		}
		f.metrics.SourceFetch(f.fetcher.Name(), "error")
		return err
	}
	f.metrics.SourceFetch(f.fetcher.Name(), "ok")
	u.localCopyPath = cached
	u.status = StatusReady
	f.touch(ctx, recordstore.NamespaceInputs, u.key)
	return nil
}

// Create segments the source and returns the media playlist path. The
// output directory is removed when the segmenter fails.
func (u *Unit) Create(ctx context.Context) (string, error) {
	f := u.factory
	if u.status != StatusReady {
		if err := u.EnsureLocalCopy(ctx); err != nil {
			return "", err
		}
	}
	if err := u.ensureOutputDir(ctx); err != nil {
		return "", err
	}

	opts := segmenter.Options{
		SegmentDuration:   f.settings.SegmentDuration,
		BaseURL:           f.settings.BaseURL(u.key),
		MediaPlaylistName: f.settings.MediaPlaylistName,
		Cacheable:         true,
		HLSVersion:        f.settings.HLSVersion,
	}
	logger := logging.WithContext(ctx, f.logger).With(logging.String(logging.FieldRendition, u.key))
	logger.Info("segmenting rendition", logging.String("source", u.localCopyPath), logging.String("output_dir", u.outputDir))
	if err := f.segmenter.Create(ctx, u.localCopyPath, u.outputDir, opts); err != nil {
		f.metrics.SegmenterRun(false)
		logging.ErrorWithContext(logger, "segmenter failed", "segmenter_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the source is a valid media file and ffmpeg is installed"),
		)
		if rmErr := os.RemoveAll(u.outputDir); rmErr != nil {
			logging.WarnWithContext(logger, "partial rendition not removed", "partial_output_remove_failed",
				logging.String("output_dir", u.outputDir),
				logging.Error(rmErr),
				logging.String(logging.FieldImpact, "stale segments stay on disk until removed by hand"),
			)
		}
		return "", services.Wrap(services.ErrEncoding, "rendition", "create", u.key, err)
	}
	f.metrics.SegmenterRun(true)
	return u.ManifestPath(), nil
}

// ensureOutputDir creates the rendition directory. The configured output
// root must already exist.
func (u *Unit) ensureOutputDir(ctx context.Context) error {
	if info, err := os.Stat(u.outputDir); err == nil && info.IsDir() {
		return nil
	}
	root := u.factory.settings.OutputRoot
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		logging.Critical(ctx, u.factory.logger, "output root missing",
			logging.String("output_dir", root),
			logging.String(logging.FieldEventType, "output_root_missing"),
			logging.String(logging.FieldErrorHint, "create the output directory or fix paths.output_dir"),
		)
		return services.Wrap(services.ErrConfiguration, "rendition", "output dir", fmt.Sprintf("output root %s does not exist", root), err)
	}
	if err := os.MkdirAll(u.outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "rendition", "output dir", u.outputDir, err)
	}
	return nil
}

// ManifestExists reports whether the media playlist is on disk.
func (u *Unit) ManifestExists() bool {
	return fileExists(u.ManifestPath())
}

// SegmentExists reports whether the named segment is on disk. name must be a
// bare file name.
func (u *Unit) SegmentExists(name string) bool {
	if !validFileName(name) {
		return false
	}
	return fileExists(filepath.Join(u.outputDir, name))
}

// ServeManifest returns the media playlist path, generating it on a miss,
// and touches the segment namespace.
func (u *Unit) ServeManifest(ctx context.Context) (string, error) {
	hit := u.ManifestExists()
	u.factory.metrics.CacheLookup(metrics.LookupManifest, hit)
	if !hit {
		if _, err := u.Create(ctx); err != nil {
			return "", err
		}
	}
	u.factory.touch(ctx, recordstore.NamespaceSegments, u.key)
	return u.ManifestPath(), nil
}

// ServeSegment returns the path of segment name, generating the rendition
// when it is missing, and touches the segment namespace. A name absent from
// an already generated rendition is not found without re-segmenting.
func (u *Unit) ServeSegment(ctx context.Context, name string) (string, error) {
	if !validFileName(name) {
		return "", services.Wrap(services.ErrValidation, "rendition", "segment", fmt.Sprintf("invalid segment name %q", name), nil)
	}
	hit := u.SegmentExists(name)
	u.factory.metrics.CacheLookup(metrics.LookupSegment, hit)
	if !hit {
		if u.ManifestExists() {
			return "", services.Wrap(services.ErrNotFound, "rendition", "segment", u.key+"/"+name, nil)
		}
		if _, err := u.Create(ctx); err != nil {
			return "", err
		}
		if !u.SegmentExists(name) {
			return "", services.Wrap(services.ErrNotFound, "rendition", "segment", u.key+"/"+name, nil)
		}
	}
	u.factory.touch(ctx, recordstore.NamespaceSegments, u.key)
	return filepath.Join(u.outputDir, name), nil
}

func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
