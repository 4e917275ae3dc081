package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	if err := c.normalizeInput(); err != nil {
		return err
	}
	c.normalizeSegmenter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InputCacheDir) == "" {
		c.Paths.InputCacheDir = defaultInputCacheDir
	}
	if c.Paths.InputCacheDir, err = expandPath(c.Paths.InputCacheDir); err != nil {
		return fmt.Errorf("paths.input_cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.ServerName = strings.TrimSuffix(strings.TrimSpace(c.Server.ServerName), "/")
	c.Server.MediaPlaylistName = strings.TrimSpace(c.Server.MediaPlaylistName)
	c.Server.MasterPlaylistName = strings.TrimSpace(c.Server.MasterPlaylistName)
	if c.Server.MasterPlaylistName == "" {
		c.Server.MasterPlaylistName = defaultMasterPlaylistName
	}
}

func (c *Config) normalizeInput() error {
	c.Input.Type = strings.ToLower(strings.TrimSpace(c.Input.Type))
	if c.Input.Type == "" {
		c.Input.Type = defaultInputType
	}
	if c.Input.FetchTimeout <= 0 {
		c.Input.FetchTimeout = defaultFetchTimeout
	}
	if c.Input.Type == InputFilesystem {
		var err error
		if c.Input.Filesystem.SourceDir, err = expandPath(strings.TrimSpace(c.Input.Filesystem.SourceDir)); err != nil {
			return fmt.Errorf("input.filesystem.source_dir: %w", err)
		}
	}
	c.Input.HTTP.BaseURL = strings.TrimSpace(c.Input.HTTP.BaseURL)
	c.Input.S3.Endpoint = strings.TrimSpace(c.Input.S3.Endpoint)
	c.Input.S3.Bucket = strings.TrimSpace(c.Input.S3.Bucket)
	c.Input.S3.Prefix = strings.Trim(strings.TrimSpace(c.Input.S3.Prefix), "/")
	if c.Input.S3.Region = strings.TrimSpace(c.Input.S3.Region); c.Input.S3.Region == "" {
		c.Input.S3.Region = defaultS3Region
	}
	return nil
}

func (c *Config) normalizeSegmenter() {
	if c.Segmenter.FFmpegBinary = strings.TrimSpace(c.Segmenter.FFmpegBinary); c.Segmenter.FFmpegBinary == "" {
		c.Segmenter.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Segmenter.FFprobeBinary = strings.TrimSpace(c.Segmenter.FFprobeBinary); c.Segmenter.FFprobeBinary == "" {
		c.Segmenter.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Segmenter.HLSVersion <= 0 {
		c.Segmenter.HLSVersion = defaultHLSVersion
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
