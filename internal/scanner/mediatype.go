package scanner

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// defaultMimeType is used when no type can be guessed from the extension.
const defaultMimeType = "application/octet-stream"

// extensionGroups maps each media category to its known extensions.
var extensionGroups = []struct {
	mediaType  models.MediaType
	extensions []string
}{
	{models.MediaImage, []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".heic"}},
	{models.MediaDocument, []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt",
		".csv", ".rtf", ".odt", ".ods", ".odp", ".pages", ".numbers", ".key"}},
	{models.MediaAudio, []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac", ".opus", ".amr"}},
	{models.MediaVideo, []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".3gp"}},
	{models.MediaArchive, []string{".zip", ".rar", ".7z", ".tar", ".gz", ".bz2"}},
}

// clientPatterns are WhatsApp-specific name markers that identify media
// files even when the extension is missing or unconventional.
var clientPatterns = []string{
	"whatsapp image", "whatsapp video", "whatsapp audio", "whatsapp document",
	"wa", "img-", "vid-", "aud-", "doc-", "ptt-",
}

// classify returns the first extension group the filename matches, or
// MediaOther.
func classify(filename string) models.MediaType {
	lower := strings.ToLower(filename)
	for _, group := range extensionGroups {
		for _, ext := range group.extensions {
			if strings.HasSuffix(lower, ext) {
				return group.mediaType
			}
		}
	}
	return models.MediaOther
}

// hasMediaExtension reports whether the filename carries any known media
// extension.
func hasMediaExtension(filename string) bool {
	return classify(filename) != models.MediaOther
}

// hasClientPattern reports whether the filename looks like a WhatsApp
// media file by naming convention.
func hasClientPattern(filename string) bool {
	lower := strings.ToLower(filename)
	for _, pattern := range clientPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// isCandidate applies the scanner's acceptance filter: not hidden, and
// either a known media extension or a client naming pattern.
func isCandidate(filename string) bool {
	if strings.HasPrefix(filename, ".") {
		return false
	}
	return hasMediaExtension(filename) || hasClientPattern(filename)
}

// guessMimeType guesses a MIME type from the extension, falling back to a
// fixed default when undetectable.
func guessMimeType(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		// Strip parameters such as "; charset=utf-8".
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return defaultMimeType
}
