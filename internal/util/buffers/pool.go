// Package buffers provides reusable byte buffers for the hot paths that
// would otherwise allocate one per chunk or per transform buffer: the
// chunk-transfer read loop (internal/download/transfer.go) and the
// file encrypt/decrypt helpers (internal/crypto). Pooling these reduces
// GC pressure under high concurrency, where many chunk transfers are
// allocating and discarding same-sized buffers simultaneously.
package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/rescale-labs/turbodownload/internal/constants"
)

var (
	chunkAllocations int64 // total chunk buffer allocations (new creates)
	smallAllocations int64 // total small buffer allocations (new creates)
)

var (
	// chunkPool provides ChunkIOBufferSize buffers for the chunk-transfer
	// read loop.
	chunkPool = &sync.Pool{
		New: func() interface{} {
			atomic.AddInt64(&chunkAllocations, 1)
			buf := make([]byte, constants.ChunkIOBufferSize)
			return &buf
		},
	}

	// smallPool provides EncryptionChunkSize buffers for the file
	// encrypt/decrypt helpers.
	smallPool = &sync.Pool{
		New: func() interface{} {
			atomic.AddInt64(&smallAllocations, 1)
			buf := make([]byte, constants.EncryptionChunkSize)
			return &buf
		},
	}
)

// GetChunkBuffer retrieves a ChunkIOBufferSize buffer from the pool. The
// buffer must be returned via PutChunkBuffer when done.
func GetChunkBuffer() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// PutChunkBuffer returns a buffer to the pool for reuse. The buffer must
// not be used after calling this function. Only buffers of
// constants.ChunkIOBufferSize are pooled; anything else is dropped. The
// buffer is cleared first so a chunk's bytes never persist across reuse.
func PutChunkBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.ChunkIOBufferSize {
		clear(*buf)
		chunkPool.Put(buf)
	}
}

// GetSmallBuffer retrieves an EncryptionChunkSize buffer from the pool.
// Used by crypto.EncryptFile and crypto.DecryptFile.
func GetSmallBuffer() *[]byte {
	return smallPool.Get().(*[]byte)
}

// PutSmallBuffer returns a small buffer to the pool for reuse. Only
// buffers of constants.EncryptionChunkSize are pooled.
func PutSmallBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.EncryptionChunkSize {
		clear(*buf)
		smallPool.Put(buf)
	}
}

// Stats reports buffer pool allocation counters, for monitoring how
// effectively the pools are amortizing allocations under load.
type Stats struct {
	ChunkBufferSize  int
	SmallBufferSize  int
	ChunkAllocations int64
	SmallAllocations int64
}

// GetStats returns current buffer pool statistics.
func GetStats() Stats {
	return Stats{
		ChunkBufferSize:  constants.ChunkIOBufferSize,
		SmallBufferSize:  constants.EncryptionChunkSize,
		ChunkAllocations: atomic.LoadInt64(&chunkAllocations),
		SmallAllocations: atomic.LoadInt64(&smallAllocations),
	}
}
