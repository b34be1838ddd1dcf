package download

import (
	"net/http"

	"github.com/rescale-labs/turbodownload/internal/constants"
	httpclient "github.com/rescale-labs/turbodownload/internal/http"
)

// Config is the one configuration object a Session is built from.
// Validation happens synchronously in New, before any I/O (§6, §7).
type Config struct {
	// URL is the source resource. Required.
	URL string

	// DestFile is the local output path. Required.
	DestFile string

	// ChunkSize is the number of bytes per chunk; must be >= 1024.
	// Defaults to 16 MiB.
	ChunkSize int64

	// Concurrency is the maximum number of parallel chunk transfers;
	// must be >= 1. Defaults to 4.
	Concurrency int

	// RetryCount is the maximum number of retries per chunk, in addition
	// to the initial attempt; must be >= 0. Defaults to 10.
	//
	// This field is a *int, not an int: zero is a valid, meaningful value
	// ("no retries, one attempt only") and must be distinguishable from
	// "unset" the same way Config.CanBeResumed distinguishes an explicit
	// false from its default (see Open Question 3 in DESIGN.md).
	RetryCount *int

	// CanBeResumed enables plan-file persistence. Defaults to true.
	//
	// This field is a *bool, not a bool: the reference behavior this
	// core replaces computed its default via truthiness coalescing,
	// which meant a caller could never actually set it to false. An
	// explicit false here is honored (see Open Question 3 in DESIGN.md).
	CanBeResumed *bool

	// FillFileByte is the byte used to preallocate the destination file.
	// Defaults to 0.
	FillFileByte byte

	// TransformStream is an optional byte-stream endomorphism applied
	// before each chunk's bytes are written to disk.
	TransformStream Transform

	// HTTPClient is the HTTP client used for the probe and every chunk
	// request. A nil client gets a default one built for range-request
	// and long-lived-connection use (see newDefaultClient).
	HTTPClient *http.Client
}

// BoolPtr is a convenience helper for setting Config.CanBeResumed, which
// must distinguish "unset" from an explicit false.
func BoolPtr(b bool) *bool { return &b }

// IntPtr is a convenience helper for setting Config.RetryCount, which
// must distinguish "unset" from an explicit zero.
func IntPtr(n int) *int { return &n }

// resolved is the validated, defaulted form of Config used internally.
type resolved struct {
	url             string
	destFile        string
	chunkSize       int64
	concurrency     int
	retryCount      int
	canBeResumed    bool
	fillFileByte    byte
	transformStream Transform
	client          *http.Client
}

func resolveConfig(cfg Config) (*resolved, error) {
	if cfg.URL == "" {
		return nil, &ConfigError{Field: "URL", Reason: "required"}
	}
	if cfg.DestFile == "" {
		return nil, &ConfigError{Field: "DestFile", Reason: "required"}
	}

	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = constants.DefaultChunkSize
	}
	if chunkSize < constants.MinChunkSize {
		return nil, &ConfigError{Field: "ChunkSize", Reason: "must be >= 1024 bytes"}
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = constants.DefaultConcurrency
	}
	if concurrency < 1 {
		return nil, &ConfigError{Field: "Concurrency", Reason: "must be >= 1"}
	}

	retryCount := constants.DefaultRetryCount
	if cfg.RetryCount != nil {
		retryCount = *cfg.RetryCount
	}
	if retryCount < 0 {
		return nil, &ConfigError{Field: "RetryCount", Reason: "must be >= 0"}
	}

	canBeResumed := true
	if cfg.CanBeResumed != nil {
		canBeResumed = *cfg.CanBeResumed
	}

	client := cfg.HTTPClient
	if client == nil {
		client = newDefaultClient()
	}

	return &resolved{
		url:             cfg.URL,
		destFile:        cfg.DestFile,
		chunkSize:       chunkSize,
		concurrency:     concurrency,
		retryCount:      retryCount,
		canBeResumed:    canBeResumed,
		fillFileByte:    cfg.FillFileByte,
		transformStream: cfg.TransformStream,
		client:          client,
	}, nil
}

// newDefaultClient returns the package's tuned range-request client
// (connection pool, timeouts, HTTP/2) when the caller doesn't supply
// their own http.Client.
func newDefaultClient() *http.Client {
	return httpclient.NewRangeClient()
}
