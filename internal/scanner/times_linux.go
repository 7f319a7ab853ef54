//go:build linux

package scanner

import (
	"io/fs"
	"syscall"
	"time"
)

// effectiveTime returns the more recent of the file's change and
// modification times. Copies often carry an old mtime but a fresh ctime,
// so taking the max better reflects when the file appeared here.
func effectiveTime(info fs.FileInfo) time.Time {
	mtime := info.ModTime()
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		ctime := time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
		if ctime.After(mtime) {
			return ctime
		}
	}
	return mtime
}
