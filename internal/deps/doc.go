// Package deps checks that the external tools the segmenter shells out to
// are installed and executable.
package deps
