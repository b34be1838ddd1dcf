package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newRangeServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// P9: calling Download a second time on the same Session returns
// ErrAlreadyStarted without repeating any work.
func TestSession_Download_SecondCallReturnsErrAlreadyStarted(t *testing.T) {
	srv := newRangeServer(t, strings.Repeat("z", 2048))

	dest := filepath.Join(t.TempDir(), "out.bin")
	sess, err := New(Config{URL: srv.URL, DestFile: dest, ChunkSize: 512, Concurrency: 2}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := sess.Download(context.Background()); err != nil {
		t.Fatalf("first Download: %v", err)
	}

	err = sess.Download(context.Background())
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted on second Download, got %v", err)
	}
}

// P4: once a download completes, the manifest written alongside the
// destination file is removed.
func TestSession_Download_ManifestRemovedAfterSuccess(t *testing.T) {
	body := strings.Repeat("a", 2048)
	srv := newRangeServer(t, body)

	dest := filepath.Join(t.TempDir(), "out.bin")
	sess, err := New(Config{URL: srv.URL, DestFile: dest, ChunkSize: 512, Concurrency: 2}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := sess.Download(context.Background()); err != nil {
		t.Fatalf("Download: %v", err)
	}

	if NewStore(dest).Exists() {
		t.Error("expected manifest to be deleted after a successful download")
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(got) != body {
		t.Error("destination content does not match source body")
	}
}

// P3: resuming a download whose manifest records one chunk as already
// downloaded only re-requests the remaining chunks, and still produces
// the exact original content.
func TestSession_Download_ResumeIsIdempotent(t *testing.T) {
	body := strings.Repeat("b", 4096)
	var requests int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		atomic.AddInt32(&requests, 1)

		start, end := 0, len(body)-1
		if rh := r.Header.Get("Range"); rh != "" {
			fmt.Sscanf(rh, "bytes=%d-%d", &start, &end)
		}
		if end >= len(body) {
			end = len(body) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(body[start : end+1]))
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "out.bin")
	cfg := Config{URL: srv.URL, DestFile: dest, ChunkSize: 1024, Concurrency: 1}

	// Seed a manifest and destination file the way a crash mid-transfer
	// would leave them: the first chunk's bytes already on disk and
	// recorded as fully downloaded, the rest untouched.
	plan := NewPlan(int64(len(body)), true, cfg.ChunkSize)
	plan.Chunks[0].Downloaded = plan.Chunks[0].Size

	if err := os.WriteFile(dest, make([]byte, len(body)), 0644); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	f, err := os.OpenFile(dest, os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open dest: %v", err)
	}
	if _, err := f.WriteAt([]byte(body[:plan.Chunks[0].Size]), 0); err != nil {
		t.Fatalf("seed first chunk: %v", err)
	}
	f.Close()

	if err := NewStore(dest).Save(plan.Snapshot()); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	sess, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sess.Download(context.Background()); err != nil {
		t.Fatalf("resumed Download: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(got) != body {
		t.Error("resumed download did not reproduce the original content")
	}

	// The already-downloaded chunk's range must never be re-requested.
	wantRequests := len(plan.Chunks) - 1
	if int(requests) != wantRequests {
		t.Errorf("expected %d requests for the remaining chunks, got %d", wantRequests, requests)
	}
}

// P5: aborting without saving progress removes both the manifest and the
// partially-written destination file.
func TestSession_Abort_NoSaveRemovesManifestAndDestFile(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "4096")
		if r.Method == http.MethodHead {
			return
		}
		<-release
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "out.bin")
	sess, err := New(Config{URL: srv.URL, DestFile: dest, ChunkSize: 1024, Concurrency: 1}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Download(context.Background()) }()

	for i := 0; i < 2000 && sess.State() != StateRunning; i++ {
		// Wait for preallocation to finish and the schedule to start,
		// so Abort races against a real in-flight request rather than
		// a session that hasn't left StateIdle yet.
		time.Sleep(time.Millisecond)
	}

	sess.Abort(false)
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("expected Download to return nil after an abort-no-save, got: %v", err)
	}

	if NewStore(dest).Exists() {
		t.Error("expected manifest to be deleted after Abort(false)")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("expected destination file to be removed after Abort(false), stat err: %v", err)
	}
}

// §5: Abort before Download has ever been called is a no-op — it must
// not poison a subsequent Download call into aborting immediately.
func TestSession_Abort_BeforeDownloadIsNoop(t *testing.T) {
	body := strings.Repeat("c", 2048)
	srv := newRangeServer(t, body)

	dest := filepath.Join(t.TempDir(), "out.bin")
	sess, err := New(Config{URL: srv.URL, DestFile: dest, ChunkSize: 512, Concurrency: 2}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sess.Abort(false)

	if err := sess.Download(context.Background()); err != nil {
		t.Fatalf("expected Download to succeed normally, got: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(got) != body {
		t.Error("destination content does not match source body after a pre-start Abort")
	}
}
