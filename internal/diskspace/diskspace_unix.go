//go:build !windows

package diskspace

import (
	"path/filepath"
	"syscall"
)

// CheckAvailableSpace reports whether the filesystem holding targetPath's
// parent directory has at least requiredBytes*safetyMargin free. The
// path itself need not exist yet (preallocate creates it after this
// check passes), but its directory must.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	dir := filepath.Dir(targetPath)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		// Can't stat the filesystem (network mount, permissions, ...).
		// Let the real file operation fail on its own rather than block
		// a transfer purely because the preflight check couldn't run.
		return nil
	}

	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	requiredWithMargin := int64(float64(requiredBytes) * safetyMargin)

	if availableBytes < requiredWithMargin {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  requiredWithMargin,
			AvailableBytes: availableBytes,
		}
	}

	return nil
}

// GetAvailableSpace returns the free bytes on the filesystem containing
// path's parent directory, or 0 if that can't be determined.
func GetAvailableSpace(path string) int64 {
	dir := filepath.Dir(path)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0
	}

	return int64(stat.Bavail) * int64(stat.Bsize)
}
