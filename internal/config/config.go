package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories the cache owns.
type Paths struct {
	OutputDir     string `toml:"output_dir"`
	InputCacheDir string `toml:"input_cache_dir"`
	StateDir      string `toml:"state_dir"`
}

// Server contains HTTP surface and playlist naming settings.
type Server struct {
	Bind               string `toml:"bind"`
	ServerName         string `toml:"server_name"`
	UseHTTPS           bool   `toml:"use_https"`
	MediaPlaylistName  string `toml:"media_playlist_name"`
	MasterPlaylistName string `toml:"master_playlist_name"`
}

// FilesystemInput configures the local source directory.
type FilesystemInput struct {
	SourceDir string `toml:"source_dir"`
}

// HTTPInput configures retrieval of sources from a web server.
type HTTPInput struct {
	BaseURL string `toml:"base_url"`
}

// S3Input configures retrieval of sources from an S3-compatible bucket.
type S3Input struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Input selects where source media comes from and whether it is mirrored locally.
type Input struct {
	Type         string          `toml:"type"`
	CacheEnabled bool            `toml:"cache_enabled"`
	FetchTimeout int             `toml:"fetch_timeout"`
	Filesystem   FilesystemInput `toml:"filesystem"`
	HTTP         HTTPInput       `toml:"http"`
	S3           S3Input         `toml:"s3"`
}

// Segmenter configures the external segmentation tools.
type Segmenter struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	SegmentDuration int    `toml:"segment_duration"`
	HLSVersion      int    `toml:"hls_version"`
}

// CacheNamespace holds eviction thresholds for one cache namespace.
type CacheNamespace struct {
	AgeMinutes       int   `toml:"age_minutes"`
	CapacityMiB      int64 `toml:"capacity_mib"`
	ThresholdPercent int   `toml:"threshold_percent"`
}

// CapacityBytes converts the configured capacity to bytes.
func (n CacheNamespace) CapacityBytes() int64 {
	return n.CapacityMiB * 1024 * 1024
}

// Cache groups the segment-output and source-input namespaces.
type Cache struct {
	Segment CacheNamespace `toml:"segment"`
	Input   CacheNamespace `toml:"input"`
}

// Maintenance configures the background eviction loop.
type Maintenance struct {
	Enabled             bool `toml:"enabled"`
	IntervalSeconds     int  `toml:"interval_seconds"`
	MaxJitterSeconds    int  `toml:"max_jitter_seconds"`
	ErrorBackoffSeconds int  `toml:"error_backoff_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for hlscache.
//
// Configuration sections by subsystem:
//   - Paths: output, input cache, and state directories
//   - Server: bind address, public server name, playlist names
//   - Input: source backend selection, caching, fetch timeout
//   - Segmenter: ffmpeg/ffprobe binaries and segment duration
//   - Cache: per-namespace eviction thresholds
//   - Maintenance: background eviction cadence
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Server      Server      `toml:"server"`
	Input       Input       `toml:"input"`
	Segmenter   Segmenter   `toml:"segmenter"`
	Cache       Cache       `toml:"cache"`
	Maintenance Maintenance `toml:"maintenance"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hlscache/config.toml")
}

// Load locates, parses, and validates a configuration file. Values from
// HLSCACHE_<SECTION>_<OPTION> environment variables (optionally seeded from a
// .env file) override the file. The returned config has all path fields
// expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(".env", filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(paths ...string) error {
	seen := make(map[string]struct{}, len(paths))
	for _, candidate := range paths {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hlscache.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and input cache directories. The output
// root is left to EnsureOutputRoot so a missing mount is reported rather than
// silently recreated.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.InputCacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EnsureOutputRoot creates the segment output root. Called once at server start.
func (c *Config) EnsureOutputRoot() error {
	if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", c.Paths.OutputDir, err)
	}
	return nil
}

// DatabasePath returns the record store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "records.db")
}

// MaintenanceLockPath returns the lock file used to elect the maintenance process.
func (c *Config) MaintenanceLockPath() string {
	return filepath.Join(c.Paths.StateDir, "maintenance.lock")
}

// FetchTimeout returns the idle bound for remote source retrieval.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Input.FetchTimeout) * time.Second
}

// MasterPlaylistFile returns the master playlist file name, always ending in .m3u8.
func (c *Config) MasterPlaylistFile() string {
	return EnsurePlaylistSuffix(c.Server.MasterPlaylistName)
}

// EnsurePlaylistSuffix appends .m3u8 when the name lacks it.
func EnsurePlaylistSuffix(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ".m3u8") {
		name += ".m3u8"
	}
	return name
}

// BaseURL returns the absolute URL prefix for playlists under dir, or "" when
// no public server name is configured and relative URIs should be written.
func (c *Config) BaseURL(dir string) string {
	return PublicBaseURL(c.Server.ServerName, c.Server.UseHTTPS, dir)
}

// PublicBaseURL builds scheme://host/i/dir/ for host, or "" when host is blank.
func PublicBaseURL(host string, useHTTPS bool, dir string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	scheme := "http"
	if useHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, RootRelativeURL(dir))
}

// RootRelativeURL builds /i/dir/, the server path for playlists under dir.
func RootRelativeURL(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return "/i/"
	}
	return "/i/" + dir + "/"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
