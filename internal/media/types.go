package media

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
)

// Kind records which rendering path produced a cached payload.
type Kind string

const (
	// KindImage is a still image fetched as-is.
	KindImage Kind = "image"
	// KindVideo is a video downgraded to a single still frame.
	KindVideo Kind = "video"
)

// ParseKind accepts "image" or "video" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindImage:
		return KindImage, nil
	case KindVideo:
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// ContentTypePrefix is the MIME top-level type a payload of this kind must carry.
func (k Kind) ContentTypePrefix() string {
	return string(k) + "/"
}

// KindForContentType classifies a Content-Type header value. Parameters such
// as charset are ignored.
func KindForContentType(contentType string) (Kind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo, true
	}
	return "", false
}

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".svg": true, ".ico": true,
	".tiff": true, ".tif": true, ".heic": true, ".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpeg": true, ".mpg": true, ".3gp": true, ".ts": true,
}

// GuessKind infers a kind from the extension of a URL's path. Callers use it
// when a consumer does not say what it is asking for.
func GuessKind(rawURL string) (Kind, bool) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ImageExtensions[ext] {
		return KindImage, true
	}
	if VideoExtensions[ext] {
		return KindVideo, true
	}
	return "", false
}
