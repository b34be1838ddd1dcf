package download

import (
	"context"
	"net/http"
	"strconv"
)

// ProbeResult is what the probe learns about a resource before a plan is
// built: whether the server advertises byte-range support, and the
// resource's total length (UnknownSize if the server omits it).
type ProbeResult struct {
	AcceptRanges bool
	TotalSize    int64
}

// probe issues a HEAD request for url and extracts AcceptRanges and
// TotalSize from the response headers. Redirects are followed
// transparently by the underlying http.Client. Any network failure or
// non-2xx status is reported as a *ProbeError; this layer never retries
// (§4.1) — retry policy belongs to the scheduler, which never calls probe.
func probe(ctx context.Context, client *http.Client, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProbeError{URL: url, Err: &statusError{resp.StatusCode}}
	}

	result := &ProbeResult{TotalSize: UnknownSize}

	if ar := resp.Header.Get("Accept-Ranges"); ar == "bytes" {
		result.AcceptRanges = true
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			result.TotalSize = n
		}
	}

	return result, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}
