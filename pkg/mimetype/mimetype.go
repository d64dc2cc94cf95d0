// Package mimetype maps filename extensions to MIME types for served
// artifacts. The table is static; unknown or missing extensions resolve
// to a caller-supplied fallback.
package mimetype

import "strings"

// DefaultContentType is the fallback for unknown or absent extensions.
const DefaultContentType = "application/octet-stream"

// byExtension is the static extension → MIME lookup table. Keys are
// lowercase, without the leading dot.
var byExtension = map[string]string{
	// Images
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"avif": "image/avif",
	"bmp":  "image/bmp",

	// Documents
	"html": "text/html",
	"htm":  "text/html",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"pdf":  "application/pdf",
	"xml":  "application/xml",

	// Scripts and data
	"js":   "application/javascript",
	"mjs":  "application/javascript",
	"json": "application/json",
	"css":  "text/css",
	"wasm": "application/wasm",

	// Archives
	"zip": "application/zip",
	"gz":  "application/gzip",
	"tar": "application/x-tar",
	"7z":  "application/x-7z-compressed",

	// Audio / video
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",

	// Fonts
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
}

// Resolve returns the MIME type for filename's extension. Matching is
// case-insensitive (".PNG" and ".png" resolve identically). When the
// filename has no extension, or the extension is unrecognized, Resolve
// returns fallback; an empty fallback means DefaultContentType.
// Resolve never fails.
func Resolve(filename, fallback string) string {
	if fallback == "" {
		fallback = DefaultContentType
	}

	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return fallback
	}

	ext := strings.ToLower(filename[i+1:])
	if mime, ok := byExtension[ext]; ok {
		return mime
	}
	return fallback
}

// Extension returns the lowercase extension of filename without the dot,
// or "" when there is none. Used to decorate artifact URLs cosmetically.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}
