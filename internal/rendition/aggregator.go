package rendition

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"hlscache/internal/config"
	"hlscache/internal/logging"
	"hlscache/internal/metrics"
	"hlscache/internal/recordstore"
	"hlscache/internal/segmenter"
	"hlscache/internal/services"
)

// Aggregator composes several units into one multi-bitrate presentation.
type Aggregator struct {
	factory    *Factory
	groupDir   string
	masterName string
	units      []*Unit
	processed  bool
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithMasterName stores the master playlist under name instead of the
// configured master playlist name.
func WithMasterName(name string) AggregatorOption {
	return func(a *Aggregator) {
		if strings.TrimSpace(name) != "" {
			a.masterName = config.EnsurePlaylistSuffix(name)
		}
	}
}

// Units returns every unit in request order.
func (a *Aggregator) Units() []*Unit {
	return a.units
}

// Ready returns the units whose sources are available, in request order.
func (a *Aggregator) Ready() []*Unit {
	ready := make([]*Unit, 0, len(a.units))
	for _, unit := range a.units {
		if unit.Status() == StatusReady {
			ready = append(ready, unit)
		}
	}
	return ready
}

// MasterPath is the master playlist location.
func (a *Aggregator) MasterPath() string {
	return filepath.Join(a.factory.settings.OutputRoot, filepath.FromSlash(a.groupDir), a.masterName)
}

// ManifestExists reports whether the master playlist is on disk.
func (a *Aggregator) ManifestExists() bool {
	return fileExists(a.MasterPath())
}

// ProcessAll ensures every unit's source. Units whose source is missing are
// marked failed and skipped; ErrNotFound is returned only when every unit
// failed. Other errors abort processing.
func (a *Aggregator) ProcessAll(ctx context.Context) error {
	f := a.factory
	logger := logging.WithContext(ctx, f.logger)
	for _, unit := range a.units {
		err := unit.EnsureLocalCopy(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, services.ErrNotFound) {
			return err
		}
		f.metrics.VariantFailed()
		logging.WarnWithContext(logger, "rendition source missing", "variant_missing",
			logging.String(logging.FieldRendition, unit.Key()),
			logging.String("group", a.groupDir),
			logging.String(logging.FieldImpact, "rendition omitted from master playlist"),
			logging.String(logging.FieldErrorHint, "check the source exists for this bitrate"),
		)
	}
	a.processed = true

	if len(a.Ready()) == 0 {
		return services.Wrap(services.ErrNotFound, "rendition", "process all",
			fmt.Sprintf("all %d renditions of %s are missing", len(a.units), a.groupDir), nil)
	}
	return nil
}

// BuildMasterManifest writes the master playlist referencing every ready
// unit in request order and returns its path.
func (a *Aggregator) BuildMasterManifest(ctx context.Context) (string, error) {
	if !a.processed {
		if err := a.ProcessAll(ctx); err != nil {
			return "", err
		}
	}
	f := a.factory
	ready := a.Ready()
	if len(ready) == 0 {
		return "", services.Wrap(services.ErrNotFound, "rendition", "master", a.groupDir, nil)
	}

	base := f.settings.MasterBaseURL(a.groupDir)
	variants := make([]segmenter.Variant, 0, len(ready))
	for _, unit := range ready {
		if err := unit.ensureOutputDir(ctx); err != nil {
			return "", err
		}
		variants = append(variants, segmenter.Variant{
			Source: unit.LocalCopyPath(),
			URI:    base + path.Join(a.relativeDir(unit), f.settings.MediaPlaylistName),
		})
	}

	master := a.MasterPath()
	if err := f.segmenter.ComposeMaster(ctx, master, variants, segmenter.MasterOptions{HLSVersion: f.settings.HLSVersion}); err != nil {
		f.metrics.SegmenterRun(false)
		return "", services.Wrap(services.ErrEncoding, "rendition", "master", a.groupDir, err)
	}
	return master, nil
}

// relativeDir is the unit directory relative to the master playlist.
func (a *Aggregator) relativeDir(unit *Unit) string {
	switch a.groupDir {
	case "":
		return unit.Key()
	case unit.Key():
		return ""
	}
	if rel, ok := strings.CutPrefix(unit.Key(), a.groupDir+"/"); ok {
		return rel
	}
	return path.Base(unit.Key())
}

// Serve returns the master playlist path, building it on a miss. Every ready
// unit is touched in the segment namespace after a build.
func (a *Aggregator) Serve(ctx context.Context) (string, error) {
	hit := a.ManifestExists()
	a.factory.metrics.CacheLookup(metrics.LookupMaster, hit)
	if hit {
		return a.MasterPath(), nil
	}
	master, err := a.BuildMasterManifest(ctx)
	if err != nil {
		return "", err
	}
	for _, unit := range a.Ready() {
		a.factory.touch(ctx, recordstore.NamespaceSegments, unit.Key())
	}
	return master, nil
}
