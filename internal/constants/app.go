// Package constants centralizes tunable defaults shared across the
// downloader core, its CLI, and its supporting packages.
package constants

import "time"

// Chunking
const (
	// DefaultChunkSize is the default number of bytes per chunk (16 MiB).
	DefaultChunkSize = 16 * 1024 * 1024

	// MinChunkSize is the smallest chunk size a session will accept.
	MinChunkSize = 1024

	// ChunkIOBufferSize is the read-buffer size used while streaming one
	// chunk's body from the network to disk (distinct from DefaultChunkSize,
	// which governs how big a Range request is). Also the pooled buffer
	// size in internal/util/buffers, so the transfer read loop and the pool
	// agree on one size.
	ChunkIOBufferSize = 256 * 1024
)

// Scheduling
const (
	// DefaultConcurrency is the default number of chunks transferred in parallel.
	DefaultConcurrency = 4

	// DefaultRetryCount is the default number of retries per chunk, in addition
	// to the initial attempt.
	DefaultRetryCount = 10
)

// Manifest
const (
	// ManifestSuffix is appended to destFile to form the plan-store path.
	ManifestSuffix = ".turbodownload"

	// DefaultFillByte is the byte written during preallocation when the
	// caller does not supply one.
	DefaultFillByte = 0
)

// Encryption
const (
	// EncryptionChunkSize is the internal buffer size used by the file
	// encrypt/decrypt helpers and the preallocation fill (16 KB). Distinct
	// from DefaultChunkSize,
	// which governs HTTP range requests.
	EncryptionChunkSize = 16 * 1024
)

// Event System
const (
	// EventBusDefaultBuffer is the default per-subscriber channel buffer size.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer caps subscriber buffer size for high-throughput use.
	EventBusMaxBuffer = 5000
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent is additional space required beyond total_size
	// before preallocation proceeds (15%).
	DiskSpaceBufferPercent = 0.15
)

// HTTP Client Timeouts
const (
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 60 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
)

// CLI progress refresh
const (
	// ProgressUpdateInterval throttles CLI progress bar redraws.
	ProgressUpdateInterval = 250 * time.Millisecond
)
