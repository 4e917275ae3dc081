package eviction

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(stat.Bsize)
	return stat.Blocks * blockSize, stat.Bavail * blockSize, nil
}

// NamespaceStats describes current usage of one namespace.
type NamespaceStats struct {
	Name             string
	Root             string
	Records          int
	Oldest           time.Time
	Newest           time.Time
	UsageBytes       int64
	CapacityBytes    int64
	ThresholdPercent int
	FSTotalBytes     uint64
	FSFreeBytes      uint64
	Err              error
}

// UsagePercent returns usage as a percentage of capacity.
func (s NamespaceStats) UsagePercent() float64 {
	if s.CapacityBytes <= 0 {
		return 0
	}
	return float64(s.UsageBytes) / float64(s.CapacityBytes) * 100
}

// OverThreshold reports whether the next capacity sweep would evict.
func (s NamespaceStats) OverThreshold() bool {
	return overThreshold(s.UsageBytes, s.CapacityBytes, s.ThresholdPercent)
}

// Stats reports usage for every namespace. Per-namespace problems are
// returned in NamespaceStats.Err rather than failing the whole call.
func (c *Controller) Stats(ctx context.Context) []NamespaceStats {
	out := make([]NamespaceStats, 0, len(c.namespaces))
	for _, ns := range c.namespaces {
		stats := NamespaceStats{
			Name:             ns.Name,
			Root:             ns.Root,
			CapacityBytes:    ns.CapacityBytes,
			ThresholdPercent: ns.ThresholdPercent,
		}
		summary, err := c.store.Stats(ctx, ns.Name)
		if err != nil {
			stats.Err = fmt.Errorf("record stats: %w", err)
			out = append(out, stats)
			continue
		}
		stats.Records = summary.Count
		stats.Oldest = summary.Oldest
		stats.Newest = summary.Newest

		usage, err := c.usage(ns.Root)
		if err != nil {
			stats.Err = fmt.Errorf("disk usage: %w", err)
			out = append(out, stats)
			continue
		}
		stats.UsageBytes = usage

		total, free, err := c.statfs(ns.Root)
		if err != nil {
			stats.Err = fmt.Errorf("statfs: %w", err)
		}
		stats.FSTotalBytes = total
		stats.FSFreeBytes = free
		out = append(out, stats)
	}
	return out
}
