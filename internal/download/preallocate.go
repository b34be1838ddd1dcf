package download

import (
	"fmt"
	"os"

	"github.com/rescale-labs/turbodownload/internal/constants"
	"github.com/rescale-labs/turbodownload/internal/diskspace"
)

// preallocate creates (truncating any existing content) the destination
// file and fills it with totalSize bytes of fillByte. Subsequent chunk
// transfers open the file for positional writes, so the file must
// already be long enough that WriteAt never sparse-extends across a
// range another worker will later fill — hence the fill pass instead of
// a bare Truncate, which would leave the tail sparse on some
// filesystems and unobservable-as-written on others.
//
// Preallocation is skipped by the caller when totalSize is unknown;
// that path instead runs a single, non-parallel chunk that grows the
// file as it writes (§4.3).
func preallocate(destFile string, totalSize int64, fillByte byte) error {
	if totalSize < 0 {
		return fmt.Errorf("preallocate: unknown size")
	}

	if err := diskspace.CheckAvailableSpace(destFile, totalSize, 1+constants.DiskSpaceBufferPercent); err != nil {
		return err
	}

	f, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer f.Close()

	const bufSize = constants.EncryptionChunkSize
	buf := make([]byte, bufSize)
	if fillByte != 0 {
		for i := range buf {
			buf[i] = fillByte
		}
	}

	remaining := totalSize
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		written, err := f.Write(buf[:n])
		if err != nil {
			return fmt.Errorf("fill destination file: %w", err)
		}
		remaining -= int64(written)
	}

	return nil
}
