package source_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"hlscache/internal/config"
	"hlscache/internal/services"
	"hlscache/internal/source"
	"hlscache/internal/testsupport"
)

func TestCleanKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b/video_720.mp4", want: "a/b/video_720.mp4"},
		{in: "a//b/./c.mp4", want: "a/b/c.mp4"},
		{in: "/etc/passwd", wantErr: true},
		{in: "a/../../secret", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := source.CleanKey(tc.in)
		if tc.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("CleanKey(%q) expected validation error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestFilesystemFetchCopiesBytes(t *testing.T) {
	root := t.TempDir()
	cache := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a", "b", "video.mp4"), 70_000)

	fetcher := source.NewFilesystem(root, nil)
	dest := filepath.Join(cache, "a", "b", "video.mp4")
	if err := fetcher.Fetch(context.Background(), "a/b/video.mp4", dest); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if info.Size() != 70_000 {
		t.Fatalf("copied %d bytes, want 70000", info.Size())
	}
	leftovers, _ := filepath.Glob(filepath.Join(cache, "a", "b", ".*.part"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestFilesystemFetchMissingSource(t *testing.T) {
	fetcher := source.NewFilesystem(t.TempDir(), nil)
	dest := filepath.Join(t.TempDir(), "missing.mp4")
	err := fetcher.Fetch(context.Background(), "missing.mp4", dest)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination should not exist after failed fetch")
	}
}

func TestFilesystemLocate(t *testing.T) {
	fetcher := source.NewFilesystem("/srv/media", nil)
	got, ok := fetcher.Locate("show/ep1.mp4")
	if !ok || got != filepath.Join("/srv/media", "show", "ep1.mp4") {
		t.Fatalf("Locate = %q, %v", got, ok)
	}
	if _, ok := fetcher.Locate("../escape.mp4"); ok {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media/a/clip.mp4":
			_, _ = w.Write([]byte("payload"))
		case "/media/slow.mp4":
			<-r.Context().Done()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := source.NewHTTP(srv.URL+"/media", 200*time.Millisecond, nil)
	dir := t.TempDir()
	ctx := context.Background()

	dest := filepath.Join(dir, "a", "clip.mp4")
	if err := fetcher.Fetch(ctx, "a/clip.mp4", dest); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected content %q, %v", data, err)
	}

	if err := fetcher.Fetch(ctx, "absent.mp4", filepath.Join(dir, "absent.mp4")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for 404, got %v", err)
	}

	if err := fetcher.Fetch(ctx, "slow.mp4", filepath.Join(dir, "slow.mp4")); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

// streamChunks writes count chunks of size bytes, flushing and pausing
// between them.
func streamChunks(w http.ResponseWriter, count, size int, pause time.Duration) {
	chunk := bytes.Repeat([]byte{'x'}, size)
	flusher, _ := w.(http.Flusher)
	for i := 0; i < count; i++ {
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		time.Sleep(pause)
	}
}

func TestHTTPFetchSteadyBodyOutlastsTimeout(t *testing.T) {
	const chunks, size = 6, 64 << 10
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamChunks(w, chunks, size, 150*time.Millisecond)
	}))
	defer srv.Close()

	fetcher := source.NewHTTP(srv.URL, 500*time.Millisecond, nil)
	dest := filepath.Join(t.TempDir(), "long.mp4")
	start := time.Now()
	if err := fetcher.Fetch(context.Background(), "long.mp4", dest); err != nil {
		t.Fatalf("Fetch failed after %s: %v", time.Since(start), err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Fatalf("transfer finished in %s; expected it to outlast the timeout", elapsed)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() != chunks*size {
		t.Fatalf("unexpected copy: %v, %v", info, err)
	}
}

func TestHTTPFetchStalledBodyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamChunks(w, 1, 1024, 0)
		<-r.Context().Done()
	}))
	defer srv.Close()

	fetcher := source.NewHTTP(srv.URL, 200*time.Millisecond, nil)
	dest := filepath.Join(t.TempDir(), "stalled.mp4")
	err := fetcher.Fetch(context.Background(), "stalled.mp4", dest)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout for stalled body, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination should not exist after stalled fetch")
	}
}

func TestHTTPFetchLogsMissingSourceAtInfo(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fetcher := source.NewHTTP(srv.URL, time.Second, logger)
	if err := fetcher.Fetch(context.Background(), "gone.mp4", filepath.Join(t.TempDir(), "gone.mp4")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["event_type"] != "source_http_status" {
			continue
		}
		found = true
		if entry["level"] != "INFO" {
			t.Fatalf("missing source logged at %v, want INFO", entry["level"])
		}
		if hint, _ := entry["error_hint"].(string); hint == "" {
			t.Fatalf("missing error_hint in %v", entry)
		}
	}
	if !found {
		t.Fatalf("no source_http_status entry in %q", buf.String())
	}
}

// newObjectServer answers path-style GETs for /media/<object> like an
// S3-compatible store, streaming the body in chunks.
func newObjectServer(t *testing.T, object string, chunks, size int, pause time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/media/"+object {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>`+
				`<BucketName>media</BucketName><Key>`+strings.TrimPrefix(r.URL.Path, "/media/")+`</Key></Error>`)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", strconv.Itoa(chunks*size))
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		streamChunks(w, chunks, size, pause)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3(t *testing.T, srv *httptest.Server, timeout time.Duration) *source.S3 {
	t.Helper()
	fetcher, err := source.NewS3(config.S3Input{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Bucket:    "media",
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test-secret",
	}, timeout, nil)
	if err != nil {
		t.Fatalf("NewS3 failed: %v", err)
	}
	return fetcher
}

func TestS3FetchSteadyBodyOutlastsTimeout(t *testing.T) {
	const chunks, size = 6, 64 << 10
	srv := newObjectServer(t, "show/ep.mp4", chunks, size, 150*time.Millisecond)
	fetcher := newTestS3(t, srv, 500*time.Millisecond)

	dest := filepath.Join(t.TempDir(), "show", "ep.mp4")
	if err := fetcher.Fetch(context.Background(), "show/ep.mp4", dest); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() != chunks*size {
		t.Fatalf("unexpected copy: %v, %v", info, err)
	}
}

func TestS3FetchMissingObject(t *testing.T) {
	srv := newObjectServer(t, "show/ep.mp4", 1, 16, 0)
	fetcher := newTestS3(t, srv, time.Second)

	dest := filepath.Join(t.TempDir(), "absent.mp4")
	err := fetcher.Fetch(context.Background(), "absent.mp4", dest)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("destination should not exist after failed fetch")
	}
}

func TestHTTPLocateJoinsBaseURL(t *testing.T) {
	fetcher := source.NewHTTP("http://origin.example/media", time.Second, nil)
	got, ok := fetcher.Locate("a b/clip.mp4")
	if !ok || got != "http://origin.example/media/a%20b/clip.mp4" {
		t.Fatalf("Locate = %q, %v", got, ok)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	fetcher, err := source.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if fetcher.Name() != "filesystem" {
		t.Fatalf("expected filesystem fetcher, got %s", fetcher.Name())
	}

	httpCfg := testsupport.NewConfig(t, testsupport.WithHTTPInput("http://origin.example/media"))
	fetcher, err = source.New(httpCfg, nil)
	if err != nil {
		t.Fatalf("New http failed: %v", err)
	}
	if got, ok := fetcher.Locate("a.mp4"); fetcher.Name() != "http" || !ok || got != "http://origin.example/media/a.mp4" {
		t.Fatalf("unexpected http fetcher: %s %q %v", fetcher.Name(), got, ok)
	}

	cfg.Input.Type = config.InputS3
	cfg.Input.S3.Endpoint = "localhost:9000"
	cfg.Input.S3.Bucket = "media"
	fetcher, err = source.New(cfg, nil)
	if err != nil {
		t.Fatalf("New s3 failed: %v", err)
	}
	if _, ok := fetcher.Locate("a.mp4"); ok {
		t.Fatal("s3 fetcher should not offer a direct location")
	}

	cfg.Input.Type = config.InputFTP
	if _, err := source.New(cfg, nil); !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "not implemented") {
		t.Fatalf("expected not implemented configuration error, got %v", err)
	}

	cfg.Input.Type = "gopher"
	if _, err := source.New(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPickSampleFindsFileWithoutFollowingSymlinks(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "x", "y", "only.mp4"), 10)
	if err := os.Symlink(root, filepath.Join(root, "x", "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		got, err := source.PickSample(root, 4, rng)
		if err != nil {
			t.Fatalf("PickSample failed: %v", err)
		}
		if got != "x/y/only.mp4" {
			t.Fatalf("PickSample = %q", got)
		}
	}
}

func TestPickSampleBoundsDepth(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "1", "2", "3", "4", "5")
	testsupport.WriteFile(t, filepath.Join(deep, "clip.mp4"), 10)

	_, err := source.PickSample(root, 2, rand.New(rand.NewPCG(3, 4)))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found past depth bound, got %v", err)
	}
}

func TestPickSampleEmptyRoot(t *testing.T) {
	if _, err := source.PickSample(t.TempDir(), 0, nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyComparesDigests(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "show", "ep.mp4"), 4096)
	scratch := t.TempDir()

	result, err := source.Verify(context.Background(), source.NewFilesystem(root, nil), root, "show/ep.mp4", scratch)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Match() || result.Bytes != 4096 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(filepath.Join(scratch, "show", "ep.mp4")); !os.IsNotExist(err) {
		t.Fatalf("fetched copy should be removed")
	}
}
