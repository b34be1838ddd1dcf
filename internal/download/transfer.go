package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/rescale-labs/turbodownload/internal/util/buffers"
)

// chunkTransferParams bundles the dependencies a single chunk transfer
// needs, independent of which chunk it is transferring.
type chunkTransferParams struct {
	client         *http.Client
	url            string
	destFile       string
	transform      Transform
	onProgress     func(written int64) // invoked per post-transform buffer write
	registerCancel func(cancel context.CancelFunc) (unregister func())
}

// transferChunk fetches the remaining bytes of chunk and writes them,
// through the optional transform, into destFile at the chunk's offset.
// It mutates chunk.Downloaded as bytes are flushed and returns once the
// chunk is complete, the context is cancelled, or a network/stream error
// occurs (§4.4).
func transferChunk(ctx context.Context, p chunkTransferParams, chunk *Chunk) error {
	start := chunk.Offset + chunk.Downloaded
	if chunk.Size < 0 {
		// No Range header is sent for an unknown-size chunk, so the body
		// always starts at the beginning of the resource.
		start = 0
	}
	remaining := chunk.Remaining()
	if remaining == 0 {
		return nil
	}

	reqCtx, cancel := context.WithCancel(ctx)
	unregister := p.registerCancel(cancel)
	defer unregister()
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.url, nil)
	if err != nil {
		return &TransferError{Offset: chunk.Offset, Err: err}
	}

	if chunk.Size >= 0 {
		end := start + remaining - 1
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return &CancelledError{Offset: chunk.Offset}
		}
		return &TransferError{Offset: chunk.Offset, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &TransferError{Offset: chunk.Offset, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var body io.Reader = resp.Body
	if p.transform != nil {
		body, err = p.transform.NewReader(resp.Body, start)
		if err != nil {
			return &TransferError{Offset: chunk.Offset, Err: fmt.Errorf("transform: %w", err)}
		}
	}

	f, err := os.OpenFile(p.destFile, os.O_WRONLY, 0644)
	if err != nil {
		return &TransferError{Offset: chunk.Offset, Err: fmt.Errorf("open destination: %w", err)}
	}
	defer f.Close()

	writeOffset := start
	bufPtr := buffers.GetChunkBuffer()
	defer buffers.PutChunkBuffer(bufPtr)
	buf := *bufPtr
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := f.WriteAt(buf[:n], writeOffset); werr != nil {
				return &TransferError{Offset: chunk.Offset, Err: fmt.Errorf("write: %w", werr)}
			}
			writeOffset += int64(n)
			atomic.AddInt64(&chunk.Downloaded, int64(n))
			if p.onProgress != nil {
				p.onProgress(int64(n))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if reqCtx.Err() != nil {
				return &CancelledError{Offset: chunk.Offset}
			}
			return &TransferError{Offset: chunk.Offset, Err: fmt.Errorf("read: %w", readErr)}
		}
	}

	return nil
}
