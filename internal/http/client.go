package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"github.com/rescale-labs/turbodownload/internal/constants"
	"golang.org/x/net/http2"
)

// NewRangeClient builds an http.Client tuned for many concurrent
// long-lived range requests against one or a few hosts: a large
// connection pool, extended handshake/idle timeouts, and HTTP/2 enabled
// by default for better multiplexing across chunk requests.
//
// Set the DISABLE_HTTP2 environment variable to "true" to force
// HTTP/1.1, useful when a path's proxy or server misbehaves under
// HTTP/2 multiplexing.
func NewRangeClient() *nethttp.Client {
	tr := &nethttp.Transport{
		MaxIdleConns:          512,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return &nethttp.Client{
		Transport: tr,
		Timeout:   0, // no overall deadline; the idle-connection timeout governs
	}
}
