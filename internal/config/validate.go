package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateInput(); err != nil {
		return err
	}
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := validateNamespace("cache.segment", c.Cache.Segment); err != nil {
		return err
	}
	if err := validateNamespace("cache.input", c.Cache.Input); err != nil {
		return err
	}
	return c.validateMaintenance()
}

func (c *Config) validateServer() error {
	name := c.Server.MediaPlaylistName
	if name == "" {
		return errors.New("server.media_playlist_name must be set")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.New("server.media_playlist_name must be a file name, not a path")
	}
	if strings.ContainsAny(c.Server.MasterPlaylistName, "/\\") {
		return errors.New("server.master_playlist_name must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateInput() error {
	if c.Input.FetchTimeout <= 0 {
		return errors.New("input.fetch_timeout must be positive")
	}
	switch c.Input.Type {
	case InputFilesystem:
		if c.Input.Filesystem.SourceDir == "" {
			return errors.New("input.filesystem.source_dir must be set when input.type is filesystem")
		}
	case InputHTTP:
		if c.Input.HTTP.BaseURL == "" {
			return errors.New("input.http.base_url must be set when input.type is http")
		}
		parsed, err := url.Parse(c.Input.HTTP.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("input.http.base_url %q is not an absolute URL", c.Input.HTTP.BaseURL)
		}
	case InputS3:
		if c.Input.S3.Endpoint == "" {
			return errors.New("input.s3.endpoint must be set when input.type is s3")
		}
		if c.Input.S3.Bucket == "" {
			return errors.New("input.s3.bucket must be set when input.type is s3")
		}
	case InputFTP:
		return fmt.Errorf("input.type %q is not implemented", c.Input.Type)
	default:
		return fmt.Errorf("input.type %q is unknown (use %s, %s or %s)", c.Input.Type, InputFilesystem, InputHTTP, InputS3)
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	if c.Segmenter.SegmentDuration <= 0 {
		return errors.New("segmenter.segment_duration must be positive")
	}
	return nil
}

func validateNamespace(section string, ns CacheNamespace) error {
	if ns.AgeMinutes <= 0 {
		return fmt.Errorf("%s.age_minutes must be positive", section)
	}
	if ns.CapacityMiB <= 0 {
		return fmt.Errorf("%s.capacity_mib must be positive", section)
	}
	if ns.ThresholdPercent <= 0 || ns.ThresholdPercent > 100 {
		return fmt.Errorf("%s.threshold_percent must be between 1 and 100", section)
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	if c.Maintenance.IntervalSeconds <= 0 {
		return errors.New("maintenance.interval_seconds must be positive")
	}
	if c.Maintenance.MaxJitterSeconds < 0 {
		return errors.New("maintenance.max_jitter_seconds must not be negative")
	}
	if c.Maintenance.ErrorBackoffSeconds <= 0 {
		return errors.New("maintenance.error_backoff_seconds must be positive")
	}
	return nil
}
