package segmenter

import (
	"context"

	"hlscache/internal/media/ffprobe"
)

// SetCommandRunnerForTests replaces the ffmpeg executor and returns a
// function restoring the previous one.
func SetCommandRunnerForTests(fn func(ctx context.Context, binary string, args ...string) ([]byte, error)) func() {
	previous := runCommand
	runCommand = fn
	return func() {
		runCommand = previous
	}
}

// SetProbeForTests overrides the ffprobe runner used by ComposeMaster.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := probe
	probe = fn
	return func() {
		probe = previous
	}
}
