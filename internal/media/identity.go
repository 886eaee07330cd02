package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"veriscope/internal/jobs"
)

// hashChunkSize is the read granularity for content hashing.
const hashChunkSize = 64 * 1024

// ChecksumFile computes the SHA-256 of the file at path, streaming it in
// 64 KiB chunks, and returns the lowercase hex digest plus the byte count.
func ChecksumFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.CopyBuffer(hasher, file, make([]byte, hashChunkSize))
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

var extensionKinds = map[string]jobs.MediaType{
	".mp4":  jobs.MediaVideo,
	".avi":  jobs.MediaVideo,
	".mov":  jobs.MediaVideo,
	".mkv":  jobs.MediaVideo,
	".webm": jobs.MediaVideo,
	".mp3":  jobs.MediaAudio,
	".wav":  jobs.MediaAudio,
	".m4a":  jobs.MediaAudio,
	".flac": jobs.MediaAudio,
}

var extensionMIMEs = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
}

// KindForPath classifies a filename as video or audio by extension. Unknown
// extensions fall back to the platform MIME table before giving up.
func KindForPath(path string) (jobs.MediaType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	if kind, ok := extensionKinds[ext]; ok {
		return kind, true
	}
	switch mimeType := mime.TypeByExtension(ext); {
	case strings.HasPrefix(mimeType, "video/"):
		return jobs.MediaVideo, true
	case strings.HasPrefix(mimeType, "audio/"):
		return jobs.MediaAudio, true
	}
	return "", false
}

// MIMEForPath returns the MIME type recorded with a registered media item.
// The fixed table keeps values stable across hosts; unknown extensions fall
// back to the platform table and finally to application/octet-stream.
func MIMEForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := extensionMIMEs[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// StoredName builds the library filename for a registered media item: the
// item identifier plus the original extension, lowercased.
func StoredName(id, originalFilename string) string {
	return id + strings.ToLower(filepath.Ext(originalFilename))
}
