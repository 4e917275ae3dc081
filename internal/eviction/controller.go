package eviction

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hlscache/internal/config"
	"hlscache/internal/logging"
	"hlscache/internal/metrics"
	"hlscache/internal/recordstore"
	"hlscache/internal/source"
)

// Eviction reasons.
const (
	ReasonAge      = "age"
	ReasonCapacity = "capacity"
)

// Store is the subset of the record store eviction needs.
type Store interface {
	FindOlderThan(ctx context.Context, namespace string, ageMinutes int) ([]string, error)
	FindOldest(ctx context.Context, namespace string, n int) ([]string, error)
	Remove(ctx context.Context, namespace, key string) error
	Stats(ctx context.Context, namespace string) (recordstore.Summary, error)
}

// Namespace configures eviction for one cache namespace.
type Namespace struct {
	Name             string
	Root             string
	AgeMinutes       int
	CapacityBytes    int64
	ThresholdPercent int
}

// NamespacesFromConfig returns the segment-output and source-input namespaces.
func NamespacesFromConfig(cfg *config.Config) []Namespace {
	return []Namespace{
		{
			Name:             recordstore.NamespaceSegments,
			Root:             cfg.Paths.OutputDir,
			AgeMinutes:       cfg.Cache.Segment.AgeMinutes,
			CapacityBytes:    cfg.Cache.Segment.CapacityBytes(),
			ThresholdPercent: cfg.Cache.Segment.ThresholdPercent,
		},
		{
			Name:             recordstore.NamespaceInputs,
			Root:             cfg.Paths.InputCacheDir,
			AgeMinutes:       cfg.Cache.Input.AgeMinutes,
			CapacityBytes:    cfg.Cache.Input.CapacityBytes(),
			ThresholdPercent: cfg.Cache.Input.ThresholdPercent,
		},
	}
}

// NamespaceReport summarizes one namespace in a pass.
type NamespaceReport struct {
	Name            string
	AgeEvicted      int
	CapacityEvicted int
	Failures        int
	UsageBefore     int64
	UsageAfter      int64
	Skipped         string
}

// Report summarizes a Clean pass.
type Report struct {
	Started    time.Time
	Duration   time.Duration
	Namespaces []NamespaceReport
}

// Evicted returns the total number of entries removed.
func (r Report) Evicted() int {
	total := 0
	for _, ns := range r.Namespaces {
		total += ns.AgeEvicted + ns.CapacityEvicted
	}
	return total
}

// Failures returns the total number of failed deletions.
func (r Report) Failures() int {
	total := 0
	for _, ns := range r.Namespaces {
		total += ns.Failures
	}
	return total
}

type usageFunc func(root string) (int64, error)

// Controller runs eviction passes over a fixed set of namespaces.
type Controller struct {
	store      Store
	namespaces []Namespace
	logger     *slog.Logger
	metrics    *metrics.Metrics
	usage      usageFunc
	statfs     statfsFunc
	now        func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithMetrics records evictions and usage on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController builds a controller for namespaces.
func NewController(store Store, namespaces []Namespace, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		namespaces: append([]Namespace(nil), namespaces...),
		logger:     logging.NewComponentLogger(logger, "eviction"),
		usage:      DiskUsage,
		statfs:     realStatfs,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Namespaces returns the configured namespaces.
func (c *Controller) Namespaces() []Namespace {
	return append([]Namespace(nil), c.namespaces...)
}

// Clean runs the age sweep and then the capacity sweep for every namespace.
func (c *Controller) Clean(ctx context.Context) (Report, error) {
	report := Report{Started: c.now()}
	for _, ns := range c.namespaces {
		if err := ctx.Err(); err != nil {
			report.Duration = c.now().Sub(report.Started)
			return report, err
		}
		nsReport, err := c.cleanNamespace(ctx, ns)
		report.Namespaces = append(report.Namespaces, nsReport)
		if err != nil {
			report.Duration = c.now().Sub(report.Started)
			return report, err
		}
	}
	report.Duration = c.now().Sub(report.Started)
	c.logger.Info("eviction pass complete",
		logging.Int("evicted", report.Evicted()),
		logging.Int("failures", report.Failures()),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

func (c *Controller) cleanNamespace(ctx context.Context, ns Namespace) (NamespaceReport, error) {
	report := NamespaceReport{Name: ns.Name}
	logger := c.logger.With(logging.String(logging.FieldNamespace, ns.Name))

	if info, err := os.Stat(ns.Root); err != nil || !info.IsDir() {
		logging.Critical(ctx, logger, "namespace root missing",
			logging.String("root", ns.Root),
			logging.String(logging.FieldEventType, "eviction_root_missing"),
			logging.String(logging.FieldErrorHint, "create the directory or fix the configured path"),
		)
		report.Skipped = "root missing"
		return report, nil
	}

	if usage, err := c.usage(ns.Root); err == nil {
		report.UsageBefore = usage
	}

	failed := make(map[string]struct{})

	if ns.AgeMinutes > 0 {
		keys, err := c.store.FindOlderThan(ctx, ns.Name, ns.AgeMinutes)
		if err != nil {
			logging.ErrorWithContext(logger, "age sweep query failed", "eviction_query_failed", logging.Error(err))
		}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := c.deleteEntry(ctx, ns, key); err != nil {
				failed[key] = struct{}{}
				report.Failures++
				c.metrics.EvictionFailed(ns.Name)
				continue
			}
			report.AgeEvicted++
			c.metrics.Evicted(ns.Name, ReasonAge)
		}
	}

	if ns.CapacityBytes > 0 {
		if err := c.capacitySweep(ctx, ns, logger, failed, &report); err != nil {
			return report, err
		}
	}

	if usage, err := c.usage(ns.Root); err == nil {
		report.UsageAfter = usage
		c.metrics.SetUsage(ns.Name, usage)
	}
	if report.AgeEvicted+report.CapacityEvicted+report.Failures > 0 {
		logger.Info("namespace cleaned",
			logging.Int("age_evicted", report.AgeEvicted),
			logging.Int("capacity_evicted", report.CapacityEvicted),
			logging.Int("failures", report.Failures),
			logging.Int64("usage_before_bytes", report.UsageBefore),
			logging.Int64("usage_after_bytes", report.UsageAfter),
		)
	}
	return report, nil
}

func (c *Controller) capacitySweep(ctx context.Context, ns Namespace, logger *slog.Logger, failed map[string]struct{}, report *NamespaceReport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		usage, err := c.usage(ns.Root)
		if err != nil {
			logging.ErrorWithContext(logger, "disk usage scan failed", "eviction_usage_failed",
				logging.String("root", ns.Root),
				logging.Error(err),
			)
			return nil
		}
		if !overThreshold(usage, ns.CapacityBytes, ns.ThresholdPercent) {
			return nil
		}

		keys, err := c.store.FindOldest(ctx, ns.Name, 1+len(failed))
		if err != nil {
			logging.ErrorWithContext(logger, "capacity sweep query failed", "eviction_query_failed", logging.Error(err))
			return nil
		}
		key, ok := firstUnfailed(keys, failed)
		if !ok {
			logging.WarnWithContext(logger, "namespace over capacity with no evictable records", "eviction_capacity_exhausted",
				logging.String("root", ns.Root),
				logging.Int64("usage_bytes", usage),
				logging.Int64("capacity_bytes", ns.CapacityBytes),
				logging.Int("threshold_percent", ns.ThresholdPercent),
				logging.String(logging.FieldImpact, "namespace stays over its capacity threshold"),
				logging.String(logging.FieldErrorHint, "remove files under the root that have no cache record or raise capacity_mib"),
			)
			return nil
		}
		if err := c.deleteEntry(ctx, ns, key); err != nil {
			failed[key] = struct{}{}
			report.Failures++
			c.metrics.EvictionFailed(ns.Name)
			continue
		}
		report.CapacityEvicted++
		c.metrics.Evicted(ns.Name, ReasonCapacity)
	}
}

func overThreshold(usage, capacity int64, thresholdPercent int) bool {
	if capacity <= 0 {
		return false
	}
	return float64(usage)/float64(capacity)*100 > float64(thresholdPercent)
}

func firstUnfailed(keys []string, failed map[string]struct{}) (string, bool) {
	for _, key := range keys {
		if _, skip := failed[key]; !skip {
			return key, true
		}
	}
	return "", false
}

// deleteEntry removes the entry's file tree, its record, and any ancestors
// left empty below the namespace root.
func (c *Controller) deleteEntry(ctx context.Context, ns Namespace, key string) error {
	logger := c.logger.With(logging.String(logging.FieldNamespace, ns.Name), logging.String("key", key))

	cleaned, err := source.CleanKey(key)
	if err != nil {
		logging.WarnWithContext(logger, "dropping record with invalid key", "eviction_invalid_key",
			logging.Error(err),
			logging.String(logging.FieldImpact, "record removed without touching the filesystem"),
		)
		return c.store.Remove(ctx, ns.Name, key)
	}
	target := filepath.Join(ns.Root, filepath.FromSlash(cleaned))

	if err := os.RemoveAll(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "cache entry deletion failed", "eviction_delete_failed",
			logging.String("path", target),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry skipped for the rest of this pass"),
			logging.String(logging.FieldErrorHint, "check permissions under the namespace root"),
		)
		return err
	}
	if err := c.store.Remove(ctx, ns.Name, key); err != nil {
		logging.WarnWithContext(logger, "cache record removal failed", "eviction_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "record will be retried on the next pass"),
		)
		return err
	}
	pruneEmptyParents(ns.Root, filepath.Dir(target))
	logger.Debug("cache entry evicted", logging.String("path", target))
	return nil
}

// pruneEmptyParents removes dir and its ancestors while they are empty,
// stopping at root without removing it.
func pruneEmptyParents(root, dir string) {
	root = filepath.Clean(root)
	dir = filepath.Clean(dir)
	for dir != root {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return
		}
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// DiskUsage sums the sizes of regular files under root.
func DiskUsage(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
