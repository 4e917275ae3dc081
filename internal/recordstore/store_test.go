package recordstore_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"hlscache/internal/recordstore"
	"hlscache/internal/services"
	"hlscache/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newStore(t *testing.T) (*recordstore.Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, recordstore.WithClock(clock.Now))
	return store, clock
}

func TestTouchIsIdempotent(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		clock.Set(time.Unix(1_700_000_000+int64(i)*10, 0))
		if err := store.Touch(ctx, recordstore.NamespaceSegments, "a/b/video_720"); err != nil {
			t.Fatalf("Touch failed: %v", err)
		}
	}

	records, err := store.List(ctx, recordstore.NamespaceSegments, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if got, want := records[0].LastTouched.Unix(), int64(1_700_000_020); got != want {
		t.Fatalf("last touched = %d, want %d", got, want)
	}
}

func TestTouchRejectsEmptyKey(t *testing.T) {
	store, _ := newStore(t)
	err := store.Touch(context.Background(), recordstore.NamespaceSegments, "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFindOlderThanUsesStrictCutoff(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	now := clock.Now()

	entries := map[string]time.Duration{
		"fresh":    -1 * time.Minute,
		"boundary": -10 * time.Minute,
		"stale":    -11 * time.Minute,
		"ancient":  -48 * time.Hour,
	}
	for key, offset := range entries {
		if err := store.TouchAt(ctx, recordstore.NamespaceInputs, key, now.Add(offset)); err != nil {
			t.Fatalf("TouchAt %s failed: %v", key, err)
		}
	}

	cases := []struct {
		age  int
		want []string
	}{
		{age: 0, want: []string{"ancient", "stale", "boundary", "fresh"}},
		{age: 10, want: []string{"ancient", "stale"}},
		{age: 60, want: []string{"ancient"}},
		{age: 60 * 72, want: []string{}},
	}
	for _, tc := range cases {
		got, err := store.FindOlderThan(ctx, recordstore.NamespaceInputs, tc.age)
		if err != nil {
			t.Fatalf("FindOlderThan(%d) failed: %v", tc.age, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("FindOlderThan(%d) = %v, want %v", tc.age, got, tc.want)
		}
	}
}

func TestFindOldestOrdersAscending(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	now := clock.Now()

	for i, key := range []string{"c", "a", "b"} {
		if err := store.TouchAt(ctx, recordstore.NamespaceSegments, key, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("TouchAt failed: %v", err)
		}
	}

	got, err := store.FindOldest(ctx, recordstore.NamespaceSegments, 2)
	if err != nil {
		t.Fatalf("FindOldest failed: %v", err)
	}
	if want := []string{"c", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("FindOldest(2) = %v, want %v", got, want)
	}

	got, err = store.FindOldest(ctx, recordstore.NamespaceSegments, 10)
	if err != nil {
		t.Fatalf("FindOldest failed: %v", err)
	}
	if want := []string{"c", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("FindOldest(10) = %v, want %v", got, want)
	}
}

func TestFindOldestEmptyNamespace(t *testing.T) {
	store, _ := newStore(t)
	got, err := store.FindOldest(context.Background(), "scratch", 1)
	if err != nil {
		t.Fatalf("FindOldest failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no keys, got %v", got)
	}
}

func TestRemoveMissingKeyIsNotAnError(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if err := store.Remove(ctx, recordstore.NamespaceSegments, "absent"); err != nil {
		t.Fatalf("Remove absent failed: %v", err)
	}
	if err := store.Touch(ctx, recordstore.NamespaceSegments, "present"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if err := store.Remove(ctx, recordstore.NamespaceSegments, "present"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	summary, err := store.Stats(ctx, recordstore.NamespaceSegments)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Count != 0 {
		t.Fatalf("expected empty namespace, got %d records", summary.Count)
	}
}

func TestStatsSummarizesNamespace(t *testing.T) {
	store, clock := newStore(t)
	ctx := context.Background()
	now := clock.Now()

	_ = store.TouchAt(ctx, recordstore.NamespaceInputs, "x", now.Add(-time.Hour))
	_ = store.TouchAt(ctx, recordstore.NamespaceInputs, "y", now)

	summary, err := store.Stats(ctx, recordstore.NamespaceInputs)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("count = %d, want 2", summary.Count)
	}
	if !summary.Oldest.Equal(now.Add(-time.Hour)) || !summary.Newest.Equal(now) {
		t.Fatalf("unexpected bounds: oldest=%v newest=%v", summary.Oldest, summary.Newest)
	}
}

func TestSanitizeNamespace(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		changed bool
		wantErr bool
	}{
		{in: "segment", want: "segment"},
		{in: "seg-ment_01", want: "segment01", changed: true},
		{in: "", want: recordstore.DefaultNamespace, changed: true},
		{in: "--", wantErr: true},
	}
	for _, tc := range cases {
		got, changed, err := recordstore.SanitizeNamespace(tc.in)
		if tc.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("SanitizeNamespace(%q) expected validation error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeNamespace(%q) failed: %v", tc.in, err)
		}
		if got != tc.want || changed != tc.changed {
			t.Fatalf("SanitizeNamespace(%q) = (%q, %v), want (%q, %v)", tc.in, got, changed, tc.want, tc.changed)
		}
	}
}

func TestSanitizedNamespacesShareRowsAndWarn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store, err := recordstore.Open(cfg.DatabasePath(), logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := store.Touch(ctx, "my-cache", "one"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if err := store.Touch(ctx, "my_cache", "two"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	keys, err := store.FindOldest(ctx, "mycache", 10)
	if err != nil {
		t.Fatalf("FindOldest failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected merged namespace with 2 keys, got %v", keys)
	}

	out := buf.String()
	for _, want := range []string{"namespace_sanitized", "namespace_collision", `"namespace":"mycache"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log to contain %q, got:\n%s", want, out)
		}
	}
}

func TestConcurrentTouchesAcrossHandles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_ = testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const workers = 4
	const perWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		handle, err := recordstore.Open(cfg.DatabasePath(), nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		wg.Add(1)
		go func(w int, s *recordstore.Store) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := s.Touch(ctx, recordstore.NamespaceSegments, fmt.Sprintf("w%d/%d", w, i%5)); err != nil {
					errs <- err
				}
			}
		}(w, handle)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Touch failed: %v", err)
	}

	store, err := recordstore.Open(cfg.DatabasePath(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	summary, err := store.Stats(ctx, recordstore.NamespaceSegments)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Count != workers*5 {
		t.Fatalf("count = %d, want %d", summary.Count, workers*5)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := recordstore.Open("  ", nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestInitIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	store, err := recordstore.Open(filepath.Join(dir, "nested", "records.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("Init #%d failed: %v", i+1, err)
		}
	}
}
