package segmenter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"hlscache/internal/config"
	"hlscache/internal/media/ffprobe"
)

func TestBuildArgs(t *testing.T) {
	opts := Options{
		SegmentDuration:   10,
		BaseURL:           "http://cdn.example/i/a/b/video_720/",
		MediaPlaylistName: "index_0_av.m3u8",
		Cacheable:         true,
	}
	args := buildArgs("/cache/a/b/video_720", "/out/a/b/video_720", opts)

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /cache/a/b/video_720",
		"-c copy",
		"-f hls",
		"-hls_time 10",
		"-hls_playlist_type vod",
		"-hls_base_url http://cdn.example/i/a/b/video_720/",
		"-hls_allow_cache 1",
		"-hls_segment_filename " + filepath.Join("/out/a/b/video_720", "segment-%d.ts"),
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if last := args[len(args)-1]; last != filepath.Join("/out/a/b/video_720", "index_0_av.m3u8") {
		t.Fatalf("unexpected output target %q", last)
	}

	opts.BaseURL = ""
	opts.Cacheable = false
	args = buildArgs("in.mp4", "out", opts)
	if slices.Contains(args, "-hls_base_url") {
		t.Fatalf("relative output should not set a base url: %v", args)
	}
	if i := slices.Index(args, "-hls_allow_cache"); i < 0 || args[i+1] != "0" {
		t.Fatalf("expected -hls_allow_cache 0: %v", args)
	}
}

func TestCreateRunsFFmpeg(t *testing.T) {
	outDir := t.TempDir()
	var gotBinary string
	restore := SetCommandRunnerForTests(func(_ context.Context, binary string, args ...string) ([]byte, error) {
		gotBinary = binary
		target := args[len(args)-1]
		return nil, os.WriteFile(target, []byte("#EXTM3U\n"), 0o644)
	})
	defer restore()

	seg := NewFFmpeg(config.Segmenter{FFmpegBinary: "/opt/ffmpeg"}, nil)
	err := seg.Create(context.Background(), "in.mp4", outDir, Options{SegmentDuration: 10, MediaPlaylistName: "index.m3u8", Cacheable: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if gotBinary != "/opt/ffmpeg" {
		t.Fatalf("unexpected binary %q", gotBinary)
	}
}

func TestCreateReportsToolOutput(t *testing.T) {
	restore := SetCommandRunnerForTests(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("in.mp4: Invalid data found when processing input\n"), errors.New("exit status 1")
	})
	defer restore()

	seg := NewFFmpeg(config.Segmenter{}, nil)
	err := seg.Create(context.Background(), "in.mp4", t.TempDir(), Options{SegmentDuration: 10, MediaPlaylistName: "index.m3u8"})
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg output in error, got %v", err)
	}
}

func TestCreateRequiresPlaylistOutput(t *testing.T) {
	restore := SetCommandRunnerForTests(func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	})
	defer restore()

	seg := NewFFmpeg(config.Segmenter{}, nil)
	err := seg.Create(context.Background(), "in.mp4", t.TempDir(), Options{SegmentDuration: 10, MediaPlaylistName: "index.m3u8"})
	if err == nil || !strings.Contains(err.Error(), "playlist not written") {
		t.Fatalf("expected missing playlist error, got %v", err)
	}
}

func TestComposeMasterPreservesOrder(t *testing.T) {
	probes := map[string]ffprobe.Result{
		"/in/low.mp4": {
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "h264", Profile: "Main", Level: 30, Width: 640, Height: 360}},
			Format:  ffprobe.Format{BitRate: "800000"},
		},
		"/in/high.mp4": {
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "h264", Profile: "High", Level: 40, Width: 1920, Height: 1080}},
			Format:  ffprobe.Format{BitRate: "5000000"},
		},
	}
	restore := SetProbeForTests(func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		return probes[path], nil
	})
	defer restore()

	path := filepath.Join(t.TempDir(), "group", "master.m3u8")
	seg := NewFFmpeg(config.Segmenter{}, nil)
	err := seg.ComposeMaster(context.Background(), path, []Variant{
		{Source: "/in/high.mp4", URI: "high.mp4/index.m3u8"},
		{Source: "/in/low.mp4", URI: "low.mp4/index.m3u8"},
	}, MasterOptions{HLSVersion: 3})
	if err != nil {
		t.Fatalf("ComposeMaster failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	body := string(data)
	high := strings.Index(body, "high.mp4/index.m3u8")
	low := strings.Index(body, "low.mp4/index.m3u8")
	if high < 0 || low < 0 || high > low {
		t.Fatalf("variants out of order:\n%s", body)
	}
	if !strings.Contains(body, "BANDWIDTH=5000000,RESOLUTION=1920x1080,CODECS=\"avc1.640028\"") {
		t.Fatalf("missing high variant attributes:\n%s", body)
	}
	if strings.Contains(body, "#EXT-X-VERSION") {
		t.Fatalf("version 3 should not emit a version tag:\n%s", body)
	}
}

func TestComposeMasterRejectsEmptyVariants(t *testing.T) {
	seg := NewFFmpeg(config.Segmenter{}, nil)
	if err := seg.ComposeMaster(context.Background(), filepath.Join(t.TempDir(), "m.m3u8"), nil, MasterOptions{}); err == nil {
		t.Fatal("expected error for empty variant list")
	}
}

func TestRenderMaster(t *testing.T) {
	got := RenderMaster([]StreamInfo{
		{URI: "a/index.m3u8", Bandwidth: 0},
		{URI: "b/index.m3u8", Bandwidth: 128000, Codecs: "mp4a.40.2"},
	}, MasterOptions{HLSVersion: 4})

	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:4\n" +
		"\n#EXT-X-STREAM-INF:BANDWIDTH=1\n" +
		"a/index.m3u8\n" +
		"\n#EXT-X-STREAM-INF:BANDWIDTH=128000,CODECS=\"mp4a.40.2\"\n" +
		"b/index.m3u8\n"
	if got != want {
		t.Fatalf("unexpected playlist:\n%s\nwant:\n%s", got, want)
	}
}
