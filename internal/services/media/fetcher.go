package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/j-veylop/mediagate/internal/config"
	"github.com/j-veylop/mediagate/internal/logger"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 2 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 30 * time.Second
	defaultChunkSize      = 32 * 1024

	// maxManifestSize bounds playlists read into memory.
	maxManifestSize = 8 << 20
)

// errIdleTimeout is reported when a body stalls longer than the read timeout.
var errIdleTimeout = errors.New("read timed out")

// Fetcher downloads URLs to disk with retry and linear backoff.
type Fetcher struct {
	client            *http.Client
	userAgents        []string
	maxAttempts       int
	retryDelay        time.Duration
	connectTimeout    time.Duration
	readTimeout       time.Duration
	chunkSize         int
	retryClientErrors bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client built from the timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithMaxAttempts sets the total number of attempts per download.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		f.maxAttempts = n
	}
}

// WithRetryDelay sets the backoff unit; the wait after attempt n is n × delay.
func WithRetryDelay(delay time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = delay
	}
}

// WithConnectTimeout bounds dialing and the TLS handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.connectTimeout = d
	}
}

// WithReadTimeout bounds the wait for response headers and for each body read.
func WithReadTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.readTimeout = d
	}
}

// WithUserAgents replaces the user-agent pool.
func WithUserAgents(agents []string) Option {
	return func(f *Fetcher) {
		f.userAgents = agents
	}
}

// WithRetryClientErrors selects whether 4xx responses other than 408 and 429
// are retried like every other failure (true) or fail at once (false).
func WithRetryClientErrors(retry bool) Option {
	return func(f *Fetcher) {
		f.retryClientErrors = retry
	}
}

// WithChunkSize sets the size of body reads and file writes.
func WithChunkSize(n int) Option {
	return func(f *Fetcher) {
		f.chunkSize = n
	}
}

// NewFetcher creates a fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		maxAttempts:       defaultMaxAttempts,
		retryDelay:        defaultRetryDelay,
		connectTimeout:    defaultConnectTimeout,
		readTimeout:       defaultReadTimeout,
		chunkSize:         defaultChunkSize,
		retryClientErrors: true,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.maxAttempts < 1 {
		f.maxAttempts = 1
	}
	if f.chunkSize <= 0 {
		f.chunkSize = defaultChunkSize
	}
	if len(f.userAgents) == 0 {
		f.userAgents = config.DefaultUserAgents
	}
	if f.client == nil {
		f.client = newHTTPClient(f.connectTimeout, f.readTimeout)
	}
	return f
}

// NewFetcherFromConfig creates a fetcher from the application configuration.
func NewFetcherFromConfig(cfg *config.Config) *Fetcher {
	return NewFetcher(
		WithMaxAttempts(cfg.FetchMaxAttempts),
		WithRetryDelay(cfg.FetchRetryDelay),
		WithConnectTimeout(cfg.FetchConnectTimeout),
		WithReadTimeout(cfg.FetchReadTimeout),
		WithUserAgents(cfg.UserAgents),
		WithRetryClientErrors(cfg.FetchRetryClientErrors),
	)
}

func newHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	// No overall timeout: large files are bounded by the idle read timer.
	return &http.Client{Transport: transport}
}

// MaxAttempts returns the configured attempt cap.
func (f *Fetcher) MaxAttempts() int {
	return f.maxAttempts
}

// UserAgent returns a random entry of the user-agent pool.
func (f *Fetcher) UserAgent() string {
	return f.userAgents[rand.IntN(len(f.userAgents))]
}

// Fetch downloads rawURL to dest and returns dest. On failure no file is left
// at dest and the error wraps ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) (string, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return "", &FetchError{URL: rawURL, Attempts: 0, Err: err}
	}

	err := f.retry(ctx, rawURL, func(ctx context.Context) error {
		_, err := f.download(ctx, rawURL, dest)
		if err != nil {
			removeFile(dest)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// FetchManifest downloads a playlist into memory. It returns the body and the
// final URL after redirects, which is the base for relative references.
func (f *Fetcher) FetchManifest(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, nil, &FetchError{URL: rawURL, Err: err}
	}

	var body []byte
	var final *url.URL
	err := f.retry(ctx, rawURL, func(ctx context.Context) error {
		var buf bytes.Buffer
		resp, n, err := f.stream(ctx, rawURL, func(*http.Response) (io.Writer, error) {
			return &limitedWriter{w: &buf, n: maxManifestSize}, nil
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrEmptyResponse
		}
		body = buf.Bytes()
		final = resp.Request.URL
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return body, final, nil
}

// retry runs fn until it succeeds, the attempt cap is reached, a client
// error is not retryable, or ctx is done.
func (f *Fetcher) retry(ctx context.Context, rawURL string, fn func(context.Context) error) error {
	var lastErr error
	var status int
	attempts := 0

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		attempts = attempt
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("fetch succeeded after retry", "url", rawURL, "attempt", attempt)
			}
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
			if !f.retryClientErrors && se.ClientError() {
				break
			}
		}
		if ctx.Err() != nil || attempt == f.maxAttempts {
			break
		}

		delay := time.Duration(attempt) * f.retryDelay
		logger.Warn("fetch attempt failed", "url", rawURL, "attempt", attempt, "retry_in", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return &FetchError{URL: rawURL, Attempts: attempts, StatusCode: status, Err: lastErr}
}

// download performs one attempt writing the body to dest.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) (int64, error) {
	var file *os.File
	_, n, err := f.stream(ctx, rawURL, func(*http.Response) (io.Writer, error) {
		var err error
		file, err = os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dest, err)
		}
		return file, nil
	})
	if file != nil {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, closeErr)
		}
	}
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, ErrEmptyResponse
	}
	return n, nil
}

// stream issues one GET and copies a 200 response body in chunks to the
// writer returned by open. Every read must complete within the read timeout.
func (f *Fetcher) stream(ctx context.Context, rawURL string, open func(*http.Response) (io.Writer, error)) (*http.Response, int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idle atomic.Bool
	timer := time.AfterFunc(f.readTimeout, func() {
		idle.Store(true)
		cancel()
	})
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, timeoutErr(err, &idle)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("failed to close response body", "url", rawURL, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp, 0, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	w, err := open(resp)
	if err != nil {
		return resp, 0, err
	}

	var written int64
	buf := make([]byte, f.chunkSize)
	for {
		timer.Reset(f.readTimeout)
		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := w.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return resp, written, fmt.Errorf("failed to write body: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			return resp, written, nil
		}
		if readErr != nil {
			return resp, written, timeoutErr(readErr, &idle)
		}
	}
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.UserAgent())
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

func timeoutErr(err error, idle *atomic.Bool) error {
	if idle.Load() {
		return fmt.Errorf("%w: %v", errIdleTimeout, err)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial file", "path", path, "error", err)
	}
}

// limitedWriter fails once more than n bytes are written.
type limitedWriter struct {
	w io.Writer
	n int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.n {
		return 0, fmt.Errorf("body exceeds %d bytes", maxManifestSize)
	}
	l.n -= int64(len(p))
	return l.w.Write(p)
}
