package fetch_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbopuffer/lambada/pkg/fetch"
)

const payload = "{\"text\": \"The quick brown fox\"}\n{\"text\": \"jumps over the lazy dog\"}\n"

// countingServer serves body for every request and counts the hits.
func countingServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestMaterialize_LocalSourceUnchanged(t *testing.T) {
	t.Parallel()

	f := fetch.New(t.TempDir())
	for _, source := range []string{"data/lambada_test_ja.jsonl", "/abs/path.jsonl", "file:///x.jsonl"} {
		got, err := f.Materialize(context.Background(), source)
		require.NoError(t, err)
		assert.Equal(t, source, got)
	}
}

func TestMaterialize_DownloadsOnce(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t, []byte(payload))
	cacheDir := t.TempDir()
	f := fetch.New(cacheDir)
	source := srv.URL + "/data/lambada_test_de.jsonl"

	first, err := f.Materialize(context.Background(), source)
	require.NoError(t, err)
	second, err := f.Materialize(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load())
	assert.True(t, strings.HasPrefix(first, cacheDir))
	assert.Equal(t, "lambada_test_de.jsonl", filepath.Base(first))

	contents, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, payload, string(contents))

	// A fresh fetcher over the same cache directory doesn't download again either.
	third, err := fetch.New(cacheDir).Materialize(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, int64(1), hits.Load())
}

func TestMaterialize_Decompresses(t *testing.T) {
	t.Parallel()

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err := gw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var zstBuf bytes.Buffer
	zw, err := zstd.NewWriter(&zstBuf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name string
		file string
		body []byte
	}{
		{name: "gzip", file: "/queries.jsonl.gz", body: gzBuf.Bytes()},
		{name: "zstd", file: "/queries.jsonl.zst", body: zstBuf.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := countingServer(t, tt.body)
			got, err := fetch.New(t.TempDir()).Materialize(context.Background(), srv.URL+tt.file)
			require.NoError(t, err)
			assert.Equal(t, "queries.jsonl", filepath.Base(got))

			contents, err := os.ReadFile(got)
			require.NoError(t, err)
			assert.Equal(t, payload, string(contents))
		})
	}
}

func TestMaterialize_CorruptArchiveLeavesNoCacheEntry(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, []byte("definitely not gzip"))
	cacheDir := t.TempDir()
	f := fetch.New(cacheDir)
	source := srv.URL + "/broken.jsonl.gz"

	_, err := f.Materialize(context.Background(), source)
	require.Error(t, err)

	path, err := f.CachePath(source)
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err == nil {
		assert.Empty(t, entries, "partial downloads are cleaned up")
	}
}

func TestMaterialize_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	f := fetch.New(t.TempDir(), fetch.WithMaxAttempts(3), fetch.WithBackoff(time.Millisecond))
	got, err := f.Materialize(context.Background(), srv.URL+"/x.jsonl")
	require.NoError(t, err)
	assert.Equal(t, int64(3), hits.Load())
	assert.FileExists(t, got)
}

func TestMaterialize_GivesUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     int
		attempts int
		wantHits int64
	}{
		{name: "server error exhausts attempts", code: http.StatusInternalServerError, attempts: 4, wantHits: 4},
		{name: "not found is not retried", code: http.StatusNotFound, attempts: 4, wantHits: 1},
		{name: "single attempt", code: http.StatusBadGateway, attempts: 0, wantHits: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hits atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, "nope", tt.code)
			}))
			t.Cleanup(srv.Close)

			f := fetch.New(
				t.TempDir(),
				fetch.WithMaxAttempts(tt.attempts),
				fetch.WithBackoff(time.Millisecond),
			)
			_, err := f.Materialize(context.Background(), srv.URL+"/x.jsonl")

			var statusErr *fetch.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.code, statusErr.Code)
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestMaterialize_Offline(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t, []byte(payload))
	cacheDir := t.TempDir()
	source := srv.URL + "/lambada_test.jsonl"

	_, err := fetch.New(cacheDir, fetch.WithOffline(true)).Materialize(context.Background(), source)
	require.ErrorIs(t, err, fetch.ErrOffline)
	assert.Equal(t, int64(0), hits.Load())

	online, err := fetch.New(cacheDir).Materialize(context.Background(), source)
	require.NoError(t, err)

	offline, err := fetch.New(cacheDir, fetch.WithOffline(true)).Materialize(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, online, offline)
	assert.Equal(t, int64(1), hits.Load())
}

func TestMaterialize_ConcurrentCallersShareDownload(t *testing.T) {
	t.Parallel()

	var (
		hits    atomic.Int64
		release = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	f := fetch.New(t.TempDir())
	source := srv.URL + "/shared.jsonl"

	var (
		wg    sync.WaitGroup
		paths = make([]string, 8)
		errs  = make([]error, 8)
	)
	for i := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = f.Materialize(context.Background(), source)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestMaterialize_SharedDownloadOutlivesCancelledCaller(t *testing.T) {
	t.Parallel()

	var (
		hits    atomic.Int64
		started = make(chan struct{})
		release = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		<-release
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	f := fetch.New(t.TempDir())
	source := srv.URL + "/shared.jsonl"

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.Materialize(ctx, source)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	var path string
	go func() {
		var err error
		path, err = f.Materialize(context.Background(), source)
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(contents))
	assert.Equal(t, int64(1), hits.Load())
}

func TestMaterialize_AbandonedDownloadIsCancelled(t *testing.T) {
	t.Parallel()

	var (
		hits    atomic.Int64
		started = make(chan struct{})
		aborted = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
			<-r.Context().Done()
			close(aborted)
			return
		}
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	f := fetch.New(t.TempDir())
	source := srv.URL + "/abandoned.jsonl"

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.Materialize(ctx, source)
		first <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("download kept running after its only caller left")
	}

	path, err := f.Materialize(context.Background(), source)
	require.NoError(t, err)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(contents))
	assert.Equal(t, int64(2), hits.Load())
}

func TestMaterialize_CancelledContext(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t, []byte(payload))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetch.New(t.TempDir()).Materialize(ctx, srv.URL+"/x.jsonl")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvict(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t, []byte(payload))
	f := fetch.New(t.TempDir())
	source := srv.URL + "/x.jsonl"

	path, err := f.Materialize(context.Background(), source)
	require.NoError(t, err)
	require.NoError(t, f.Evict(source))
	assert.NoFileExists(t, path)
	require.NoError(t, f.Evict(source), "evicting twice is fine")

	_, err = f.Materialize(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCachePath(t *testing.T) {
	t.Parallel()

	f := fetch.New("/cache")
	tests := []struct {
		source string
		want   string
	}{
		{
			source: "https://huggingface.co/datasets/EleutherAI/lambada_openai/resolve/main/data/lambada_test_fr.jsonl",
			want:   "/cache/lambada/huggingface.co/datasets/EleutherAI/lambada_openai/resolve/main/data/lambada_test_fr.jsonl",
		},
		{
			source: "https://example.com/corpus.jsonl.gz",
			want:   "/cache/lambada/example.com/corpus.jsonl",
		},
		{
			source: "http://127.0.0.1:8080/../../etc/passwd",
			want:   "/cache/lambada/127.0.0.1_8080/etc/passwd",
		},
		{
			source: "https://example.com/",
			want:   "/cache/lambada/example.com/index",
		},
	}
	for _, tt := range tests {
		got, err := f.CachePath(tt.source)
		require.NoError(t, err, tt.source)
		assert.Equal(t, filepath.FromSlash(tt.want), got, tt.source)
	}

	a, err := f.CachePath("https://example.com/x.jsonl?download=true")
	require.NoError(t, err)
	b, err := f.CachePath("https://example.com/x.jsonl?download=false")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = f.CachePath("relative/path.jsonl")
	assert.Error(t, err)
}
