// Package segmenter turns a source media file into an HLS media playlist and
// segments, and composes master playlists across renditions.
//
// The FFmpeg implementation remuxes without transcoding. Master playlists
// are rendered here from ffprobe metadata so variant order always matches
// the order callers pass in.
package segmenter
