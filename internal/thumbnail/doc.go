// Package thumbnail turns downloaded video payloads into still JPEG frames.
//
// The payload is staged to a temp file, ffprobe reads its duration, and
// ffmpeg grabs a single frame at the requested offset (clamped to the
// duration). The frame is scaled onto a fixed canvas, 300x300 by default, and
// encoded at quality 80, through libvips when it is initialized and through
// imaging otherwise.
package thumbnail
