package segmenter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"hlscache/internal/config"
	"hlscache/internal/fileutil"
	"hlscache/internal/logging"
	"hlscache/internal/media/ffprobe"
)

// SegmentPattern names segment files inside a rendition directory.
const SegmentPattern = "segment-%d.ts"

// Options is the fixed set of fields a segmentation run needs.
type Options struct {
	SegmentDuration   int
	BaseURL           string
	MediaPlaylistName string
	Cacheable         bool
	HLSVersion        int
}

// Variant is one rendition referenced from a master playlist.
type Variant struct {
	// Source is the media file probed for bandwidth and codecs.
	Source string
	// URI is written verbatim as the variant's playlist location.
	URI string
}

// MasterOptions configures master playlist composition.
type MasterOptions struct {
	HLSVersion int
}

// Segmenter produces HLS output for a single source and master playlists.
type Segmenter interface {
	Create(ctx context.Context, source, outputDir string, opts Options) error
	ComposeMaster(ctx context.Context, path string, variants []Variant, opts MasterOptions) error
}

type commandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

var runCommand commandRunner = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

var probe = ffprobe.Inspect

// FFmpeg segments with ffmpeg's HLS muxer.
type FFmpeg struct {
	ffmpegBinary  string
	ffprobeBinary string
	logger        *slog.Logger
}

// NewFFmpeg builds a segmenter from the configured binaries.
func NewFFmpeg(cfg config.Segmenter, logger *slog.Logger) *FFmpeg {
	ffmpegBinary := strings.TrimSpace(cfg.FFmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	ffprobeBinary := strings.TrimSpace(cfg.FFprobeBinary)
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpeg{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "segmenter"),
	}
}

// Create writes outputDir/<MediaPlaylistName> and its segments from source.
func (f *FFmpeg) Create(ctx context.Context, source, outputDir string, opts Options) error {
	if strings.TrimSpace(opts.MediaPlaylistName) == "" {
		return fmt.Errorf("segmenter: media playlist name is required")
	}
	if opts.SegmentDuration <= 0 {
		return fmt.Errorf("segmenter: segment duration must be positive")
	}
	args := buildArgs(source, outputDir, opts)
	logging.WithContext(ctx, f.logger).Debug("running ffmpeg",
		logging.String("source", source),
		logging.String("output_dir", outputDir),
		logging.String("args", strings.Join(args, " ")),
	)
	output, err := runCommand(ctx, f.ffmpegBinary, args...)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			return fmt.Errorf("ffmpeg %s: %w", filepath.Base(source), err)
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", filepath.Base(source), err, detail)
	}
	if _, err := os.Stat(filepath.Join(outputDir, opts.MediaPlaylistName)); err != nil {
		return fmt.Errorf("ffmpeg %s: playlist not written: %w", filepath.Base(source), err)
	}
	return nil
}

func buildArgs(source, outputDir string, opts Options) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-map", "0",
		"-c", "copy",
		"-f", "hls",
		"-hls_time", strconv.Itoa(opts.SegmentDuration),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-start_number", "0",
		"-hls_segment_type", "mpegts",
	}
	if opts.BaseURL != "" {
		args = append(args, "-hls_base_url", opts.BaseURL)
	}
	allowCache := "0"
	if opts.Cacheable {
		allowCache = "1"
	}
	args = append(args,
		"-hls_allow_cache", allowCache,
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		filepath.Join(outputDir, opts.MediaPlaylistName),
	)
	return args
}

// ComposeMaster probes each variant source and writes the master playlist
// at path. Variants appear in the order given.
func (f *FFmpeg) ComposeMaster(ctx context.Context, path string, variants []Variant, opts MasterOptions) error {
	if len(variants) == 0 {
		return fmt.Errorf("segmenter: master playlist needs at least one variant")
	}
	entries := make([]StreamInfo, 0, len(variants))
	for _, variant := range variants {
		info := StreamInfo{URI: variant.URI, Bandwidth: 1}
		result, err := probe(ctx, f.ffprobeBinary, variant.Source)
		if err != nil {
			return fmt.Errorf("probe %s: %w", variant.Source, err)
		}
		if rate := result.BitRate(); rate > 0 {
			info.Bandwidth = rate
		}
		info.Resolution = result.Resolution()
		info.Codecs = result.Codecs()
		entries = append(entries, info)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create master playlist directory: %w", err)
	}
	return fileutil.WriteFileAtomic(path, []byte(RenderMaster(entries, opts)), 0o644)
}
