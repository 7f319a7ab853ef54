//go:build !linux

package scanner

import (
	"io/fs"
	"time"
)

// effectiveTime falls back to the modification time on platforms where a
// change time is not portably available.
func effectiveTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
