// Package diskspace guards preallocation (internal/download/preallocate.go)
// against starting a transfer that can never finish: before a session
// truncates and fills the destination file, it asks this package whether
// the target filesystem actually has room.
package diskspace

import "fmt"

// InsufficientSpaceError reports that the filesystem backing a
// destination path does not have enough free space for a preallocation
// of RequiredBytes (already inflated by the caller's safety margin).
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// IsInsufficientSpaceError reports whether err is an *InsufficientSpaceError,
// so a caller can distinguish "not enough room" from other preallocation
// failures (permissions, missing parent directory, ...).
func IsInsufficientSpaceError(err error) bool {
	_, ok := err.(*InsufficientSpaceError)
	return ok
}
