// Package fetch materializes remote dataset files into a local, path-addressed
// cache. Downloads are decompressed on the way in, retried on server errors
// and shared between concurrent callers asking for the same file.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/singleflight"
)

// ErrOffline is returned when a remote source isn't cached and the fetcher is offline.
var ErrOffline = errors.New("source not cached and fetcher is offline")

// StatusError is returned when the server answers with a non-200 status code.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fetching %s: status code %d", e.URL, e.Code)
	}
	return fmt.Sprintf("fetching %s: status code %d: %s", e.URL, e.Code, e.Body)
}

// Fetcher downloads remote sources into a cache directory.
type Fetcher struct {
	logger      *slog.Logger
	client      *http.Client
	cacheDir    string
	maxAttempts int
	backoff     time.Duration
	offline     bool
	progress    bool

	mu        sync.Mutex
	downloads singleflight.Group // keyed by cache path
	flights   map[string]*flight // keyed by cache path, guarded by mu
}

// flight is the context a shared download runs under. It is cancelled once
// every caller waiting on the download has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger used to report downloads.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for downloads. Defaults to http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithMaxAttempts sets how many times a download is attempted when the
// server responds with a 5xx status. Values below 1 mean a single attempt.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		f.maxAttempts = max(n, 1)
	}
}

// WithBackoff sets the base delay between attempts; the n-th retry waits n times this.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.backoff = d
	}
}

// WithOffline makes cache misses fail with ErrOffline instead of downloading.
func WithOffline(offline bool) Option {
	return func(f *Fetcher) {
		f.offline = offline
	}
}

// WithProgress renders a progress bar while downloading.
func WithProgress(progress bool) Option {
	return func(f *Fetcher) {
		f.progress = progress
	}
}

// New creates a Fetcher caching files under cacheDir.
func New(cacheDir string, options ...Option) *Fetcher {
	f := &Fetcher{
		logger:      slog.New(slog.DiscardHandler),
		client:      http.DefaultClient,
		cacheDir:    cacheDir,
		maxAttempts: 3,
		backoff:     150 * time.Millisecond,
		flights:     make(map[string]*flight),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Materialize ensures source is available as a local file and returns its path.
// Local paths are returned unchanged. Remote sources are served from the cache
// when present, otherwise downloaded (and decompressed) into it first.
func (f *Fetcher) Materialize(ctx context.Context, source string) (string, error) {
	u, ok := parseRemote(source)
	if !ok {
		return source, nil
	}
	dst, err := f.cachePath(u)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}
	if f.offline {
		return "", fmt.Errorf("%w: %s", ErrOffline, source)
	}

	fl, results := f.join(ctx, u, dst)
	defer f.leave(dst, fl)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		err = res.Err
	}
	if err != nil {
		return "", err
	}
	return dst, nil
}

// join registers the caller as a waiter on the download of dst, starting one
// if none is running.
func (f *Fetcher) join(ctx context.Context, u *url.URL, dst string) (*flight, <-chan singleflight.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl, ok := f.flights[dst]
	if !ok {
		dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: dctx, cancel: cancel}
		f.flights[dst] = fl
	}
	fl.waiters++

	results := f.downloads.DoChan(dst, func() (any, error) {
		if _, err := os.Stat(dst); err == nil {
			return nil, nil // Finished by a previous caller
		}
		return nil, f.download(fl.ctx, u, dst)
	})
	return fl, results
}

// leave unregisters a waiter. The last one out cancels the download if it is
// still running, and makes the next caller start a fresh one.
func (f *Fetcher) leave(dst string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if f.flights[dst] == fl {
		delete(f.flights, dst)
		f.downloads.Forget(dst)
	}
}

// CachePath returns where a remote source is (or would be) cached.
func (f *Fetcher) CachePath(source string) (string, error) {
	u, ok := parseRemote(source)
	if !ok {
		return "", fmt.Errorf("source %q is not a remote url", source)
	}
	return f.cachePath(u)
}

// Evict removes the cached copy of a remote source, if any.
func (f *Fetcher) Evict(source string) error {
	dst, err := f.CachePath(source)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cached file %s: %w", dst, err)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL, dst string) error {
	start := time.Now()
	f.logger.Info("downloading file", slog.String("url", u.String()))

	resp, err := f.get(ctx, u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	// Written next to the destination and renamed once complete, so a
	// cache hit never observes a partial file.
	tmp := dst + ".partial-" + uuid.NewString()
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	var bar *progressbar.ProgressBar
	if f.progress {
		bar = progressbar.DefaultBytes(resp.ContentLength, "downloading "+path.Base(u.Path))
	} else {
		bar = progressbar.DefaultBytesSilent(resp.ContentLength)
	}

	written, err := copyDecompressed(out, io.TeeReader(resp.Body, bar), u.Path)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing cache file: %w", cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", u, err)
	}
	bar.Finish()

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving cache file into place: %w", err)
	}

	f.logger.Info(
		"download complete",
		slog.String("url", u.String()),
		slog.String("path", dst),
		slog.Int64("bytes", written),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// get issues a GET request, retrying server errors up to maxAttempts times.
// The caller must close the returned body.
func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff * time.Duration(attempt)): // 150ms, 300ms, 450ms, ...
			}
			f.logger.Warn(
				"retrying download",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt+1),
				slog.String("error", lastErr.Error()),
			)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = &StatusError{URL: rawURL, Code: resp.StatusCode, Body: string(body)}
		if !statusCodeShouldRetry(resp.StatusCode) {
			break
		}
	}
	return nil, lastErr
}

func statusCodeShouldRetry(code int) bool {
	return code >= 500
}
