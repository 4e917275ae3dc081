package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hlscache/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The output root, input cache, source and state directories all exist.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.InputCacheDir = filepath.Join(base, "input")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Input.Filesystem.SourceDir = filepath.Join(base, "source")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Maintenance.Enabled = false

	for _, dir := range []string{
		cfgVal.Paths.OutputDir,
		cfgVal.Paths.InputCacheDir,
		cfgVal.Paths.StateDir,
		cfgVal.Input.Filesystem.SourceDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithServerName sets the public host used to build absolute playlist URIs.
func WithServerName(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.ServerName = name
	}
}

// WithInputCacheDisabled serves sources in place instead of mirroring them.
func WithInputCacheDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Input.CacheEnabled = false
	}
}

// WithHTTPInput points the source fetcher at a web server.
func WithHTTPInput(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Input.Type = config.InputHTTP
		b.cfg.Input.HTTP.BaseURL = baseURL
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// points the segmenter configuration at them. If names is empty, ffmpeg and
// ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffmpeg":
				b.cfg.Segmenter.FFmpegBinary = target
			case "ffprobe":
				b.cfg.Segmenter.FFprobeBinary = target
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
