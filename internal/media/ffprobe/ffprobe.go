package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Profile   string `json:"profile"`
	Level     int    `json:"level"`
	BitRate   string `json:"bit_rate"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

type commandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

var runCommand commandRunner = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	output, err := runCommand(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	return r.firstOfType("video")
}

// AudioStream returns the first audio stream.
func (r Result) AudioStream() (Stream, bool) {
	return r.firstOfType("audio")
}

func (r Result) firstOfType(kind string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds: 0 when absent,
// NaN when ffprobe reported something unparseable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// BitRate returns the container bitrate in bits per second. When the
// container does not report one, the stream bitrates are summed. Zero means
// unknown.
func (r Result) BitRate() int64 {
	if rate := parseNonNegative(r.Format.BitRate); rate > 0 {
		return rate
	}
	var total int64
	for _, stream := range r.Streams {
		total += parseNonNegative(stream.BitRate)
	}
	return total
}

// Resolution returns WIDTHxHEIGHT of the first video stream, or "" for
// audio-only media.
func (r Result) Resolution() string {
	video, ok := r.VideoStream()
	if !ok || video.Width <= 0 || video.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", video.Width, video.Height)
}

// Codecs returns the RFC 6381 codec list for the first video and audio
// streams. Codecs without a known mapping are omitted.
func (r Result) Codecs() string {
	var parts []string
	if video, ok := r.VideoStream(); ok {
		if codec := videoCodecString(video); codec != "" {
			parts = append(parts, codec)
		}
	}
	if audio, ok := r.AudioStream(); ok {
		if codec := audioCodecString(audio); codec != "" {
			parts = append(parts, codec)
		}
	}
	return strings.Join(parts, ",")
}

var h264Profiles = map[string]string{
	"baseline":             "42",
	"constrained baseline": "42",
	"main":                 "4d",
	"extended":             "58",
	"high":                 "64",
}

func videoCodecString(s Stream) string {
	switch strings.ToLower(s.CodecName) {
	case "h264":
		profile, ok := h264Profiles[strings.ToLower(s.Profile)]
		if !ok || s.Level <= 0 {
			return ""
		}
		constraint := "00"
		if strings.EqualFold(s.Profile, "constrained baseline") {
			constraint = "e0"
		}
		return fmt.Sprintf("avc1.%s%s%02x", profile, constraint, s.Level)
	case "hevc":
		return "hvc1"
	default:
		return ""
	}
}

func audioCodecString(s Stream) string {
	switch strings.ToLower(s.CodecName) {
	case "aac":
		if strings.EqualFold(s.Profile, "he-aac") {
			return "mp4a.40.5"
		}
		return "mp4a.40.2"
	case "mp3":
		return "mp4a.40.34"
	case "ac3":
		return "ac-3"
	case "eac3":
		return "ec-3"
	default:
		return ""
	}
}

func parseNonNegative(value string) int64 {
	rate := parseFloat(value)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
