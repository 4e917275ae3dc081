package ffprobe

import "context"

// SetCommandRunnerForTests replaces the ffprobe executor and returns a
// function restoring the previous one.
func SetCommandRunnerForTests(fn func(ctx context.Context, binary string, args ...string) ([]byte, error)) func() {
	previous := runCommand
	runCommand = fn
	return func() {
		runCommand = previous
	}
}
