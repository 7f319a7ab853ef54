package scanner

import (
	"os"
	"path/filepath"
	"runtime"
)

// mediaRoots returns the platform-appropriate WhatsApp media directories
// plus any configured extras. Candidates may not exist; the scan skips
// unreadable roots instead of failing.
func mediaRoots(extra []string) []string {
	var roots []string

	switch runtime.GOOS {
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			roots = append(roots, filepath.Join(home,
				"Library", "Group Containers", "group.net.whatsapp.WhatsApp.shared", "Message", "Media"))
		}
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			roots = append(roots, filepath.Join(local, "WhatsApp", "Media"))
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			roots = append(roots, filepath.Join(home, ".config", "WhatsApp", "Media"))
		}
	}

	roots = append(roots, extra...)
	return roots
}

// readableDir reports whether path exists, is a directory, and can be
// listed.
func readableDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
