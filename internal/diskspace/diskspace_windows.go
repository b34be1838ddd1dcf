//go:build windows

package diskspace

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	kernel32            = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceExW = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// CheckAvailableSpace reports whether the volume holding targetPath's
// parent directory has at least requiredBytes*safetyMargin free.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	dir := filepath.Dir(targetPath)

	availableBytes := getAvailableSpaceWindows(dir)
	if availableBytes == 0 {
		// Couldn't query the volume; let the real file operation fail on
		// its own rather than block a transfer on a failed preflight check.
		return nil
	}

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

// GetAvailableSpace returns the free bytes on the volume containing
// path's parent directory, or 0 if that can't be determined.
func GetAvailableSpace(path string) int64 {
	dir := filepath.Dir(path)
	return getAvailableSpaceWindows(dir)
}

func getAvailableSpaceWindows(path string) int64 {
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0
	}

	ret, _, _ := getDiskFreeSpaceExW.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)

	if ret == 0 {
		return 0
	}

	return int64(freeBytesAvailable)
}
