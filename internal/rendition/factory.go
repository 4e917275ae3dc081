package rendition

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"hlscache/internal/config"
	"hlscache/internal/logging"
	"hlscache/internal/metrics"
	"hlscache/internal/segmenter"
	"hlscache/internal/services"
	"hlscache/internal/source"
)

// Toucher records cache accesses.
type Toucher interface {
	Touch(ctx context.Context, namespace, key string) error
}

// Settings is the configuration a Factory needs.
type Settings struct {
	OutputRoot         string
	InputCacheRoot     string
	CacheEnabled       bool
	MediaPlaylistName  string
	MasterPlaylistName string
	SegmentDuration    int
	HLSVersion         int
	ServerName         string
	UseHTTPS           bool
}

// SettingsFromConfig extracts Settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		OutputRoot:         cfg.Paths.OutputDir,
		InputCacheRoot:     cfg.Paths.InputCacheDir,
		CacheEnabled:       cfg.Input.CacheEnabled,
		MediaPlaylistName:  cfg.Server.MediaPlaylistName,
		MasterPlaylistName: cfg.MasterPlaylistFile(),
		SegmentDuration:    cfg.Segmenter.SegmentDuration,
		HLSVersion:         cfg.Segmenter.HLSVersion,
		ServerName:         cfg.Server.ServerName,
		UseHTTPS:           cfg.Server.UseHTTPS,
	}
}

// BaseURL returns the URI prefix written into playlists under dir.
func (s Settings) BaseURL(dir string) string {
	return config.PublicBaseURL(s.ServerName, s.UseHTTPS, dir)
}

// MasterBaseURL returns the prefix for variant URIs in a master playlist
// under dir. Without a server name it is root-relative, since a csmil master
// is requested from a path that does not name its directory.
func (s Settings) MasterBaseURL(dir string) string {
	if base := s.BaseURL(dir); base != "" {
		return base
	}
	return config.RootRelativeURL(dir)
}

// Factory builds per-request units and aggregators.
type Factory struct {
	settings  Settings
	store     Toucher
	fetcher   source.Fetcher
	segmenter segmenter.Segmenter
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewFactory wires the collaborators shared by every request. m may be nil.
func NewFactory(settings Settings, store Toucher, fetcher source.Fetcher, seg segmenter.Segmenter, logger *slog.Logger, m *metrics.Metrics) *Factory {
	settings.MasterPlaylistName = config.EnsurePlaylistSuffix(settings.MasterPlaylistName)
	return &Factory{
		settings:  settings,
		store:     store,
		fetcher:   fetcher,
		segmenter: seg,
		logger:    logging.NewComponentLogger(logger, "rendition"),
		metrics:   m,
	}
}

// Settings returns the factory configuration.
func (f *Factory) Settings() Settings {
	return f.settings
}

// Unit returns an unprocessed unit for key.
func (f *Factory) Unit(key string) (*Unit, error) {
	cleaned, err := source.CleanKey(key)
	if err != nil {
		return nil, err
	}
	return &Unit{
		factory:   f,
		key:       cleaned,
		status:    StatusUnprocessed,
		outputDir: filepath.Join(f.settings.OutputRoot, filepath.FromSlash(cleaned)),
	}, nil
}

// Aggregator groups the units for keys behind a master playlist written to
// groupDir. Unit order is preserved.
func (f *Factory) Aggregator(groupDir string, keys []string, opts ...AggregatorOption) (*Aggregator, error) {
	if len(keys) == 0 {
		return nil, services.Wrap(services.ErrValidation, "rendition", "aggregate", "no renditions requested", nil)
	}
	group := ""
	if strings.Trim(groupDir, "/ ") != "" {
		cleaned, err := source.CleanKey(groupDir)
		if err != nil {
			return nil, err
		}
		group = cleaned
	}
	units := make([]*Unit, 0, len(keys))
	for _, key := range keys {
		unit, err := f.Unit(key)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	agg := &Aggregator{factory: f, groupDir: group, masterName: f.settings.MasterPlaylistName, units: units}
	for _, opt := range opts {
		opt(agg)
	}
	return agg, nil
}

func (f *Factory) touch(ctx context.Context, namespace, key string) {
	if f.store == nil {
		return
	}
	if err := f.store.Touch(ctx, namespace, key); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, f.logger), "cache record touch failed", "record_touch_failed",
			logging.String(logging.FieldNamespace, namespace),
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry may be evicted early or missed by eviction"),
			logging.String(logging.FieldErrorHint, "check the record store database and state directory permissions"),
		)
	}
}
