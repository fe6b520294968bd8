package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// segmentServer serves a media playlist of segments a, b, c (10, 20 and 5
// bytes) under /hls/ plus a master playlist pointing at it.
type segmentServer struct {
	*httptest.Server
	segments map[string][]byte
	failing  string
	hits     atomic.Int32
}

func newSegmentServer(t *testing.T, failing string) *segmentServer {
	t.Helper()

	s := &segmentServer{
		segments: map[string][]byte{
			"a.ts": bytes.Repeat([]byte("a"), 10),
			"b.ts": bytes.Repeat([]byte("b"), 20),
			"c.ts": bytes.Repeat([]byte("c"), 5),
		},
		failing: failing,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/hls/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		// Mixed relative and absolute references.
		fmt.Fprintf(w, "#EXTM3U\n#EXTINF:1,\na.ts\n#EXTINF:1,\n/hls/b.ts\n#EXTINF:1,\nhttp://%s/hls/c.ts\n#EXT-X-ENDLIST\n", r.Host)
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nlow/index.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=900\nhls/index.m3u8\n")
	})
	mux.HandleFunc("/hls/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/hls/")
		data, ok := s.segments[name]
		if !ok || name == s.failing {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *segmentServer) expected() []byte {
	return bytes.Join([][]byte{s.segments["a.ts"], s.segments["b.ts"], s.segments["c.ts"]}, nil)
}

// concatRemuxer is a conforming stand-in for the external tool: it resolves
// the manifest and concatenates the segments itself.
type concatRemuxer struct {
	r     *Reconstructor
	calls atomic.Int32
}

func (c *concatRemuxer) Remux(ctx context.Context, manifestURL, dest string) error {
	c.calls.Add(1)
	segments, err := c.r.Segments(ctx, manifestURL)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	for _, seg := range segments {
		resp, err := http.Get(seg.URI)
		if err != nil {
			return err
		}
		_, err = io.Copy(&out, resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}
	}
	return os.WriteFile(dest, out.Bytes(), 0600)
}

// brokenRemuxer leaves junk behind and fails.
type brokenRemuxer struct {
	err error
}

func (b *brokenRemuxer) Remux(_ context.Context, _ string, dest string) error {
	if err := os.WriteFile(dest, []byte("JUNKJUNKJUNK"), 0600); err != nil {
		return err
	}
	return b.err
}

func assertBytes(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("output = %q (%d bytes), want %q (%d bytes)", got, len(got), want, len(want))
	}
}

func assertNoParts(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.part*"))
	if err != nil {
		t.Fatalf("Glob() failed: %v", err)
	}
	if len(matches) > 0 {
		t.Errorf("segment side files left behind: %v", matches)
	}
}

func TestReconstruct_ManualConcatenation(t *testing.T) {
	srv := newSegmentServer(t, "")
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.mp4")

	r := NewReconstructor(newTestFetcher())
	got, err := r.Reconstruct(context.Background(), srv.URL+"/hls/index.m3u8", dest)
	if err != nil {
		t.Fatalf("Reconstruct() failed: %v", err)
	}
	if got != dest {
		t.Errorf("Reconstruct() = %q, want %q", got, dest)
	}

	want := srv.expected()
	if len(want) != 35 {
		t.Fatalf("fixture is %d bytes, want 35", len(want))
	}
	assertBytes(t, dest, want)
	assertNoParts(t, dir)
}

func TestReconstruct_StrategiesAgree(t *testing.T) {
	srv := newSegmentServer(t, "")
	dir := t.TempDir()

	manual := filepath.Join(dir, "manual.mp4")
	if _, err := NewReconstructor(newTestFetcher()).Reconstruct(context.Background(), srv.URL+"/hls/index.m3u8", manual); err != nil {
		t.Fatalf("manual Reconstruct() failed: %v", err)
	}

	r := NewReconstructor(newTestFetcher())
	tool := &concatRemuxer{r: r}
	WithRemuxer(tool)(r)

	remuxed := filepath.Join(dir, "remuxed.mp4")
	if _, err := r.Reconstruct(context.Background(), srv.URL+"/hls/index.m3u8", remuxed); err != nil {
		t.Fatalf("remux Reconstruct() failed: %v", err)
	}
	if tool.calls.Load() != 1 {
		t.Errorf("remuxer called %d times, want 1", tool.calls.Load())
	}

	a, _ := os.ReadFile(manual)
	b, _ := os.ReadFile(remuxed)
	if !bytes.Equal(a, b) || len(a) != 35 {
		t.Errorf("strategies differ: manual %d bytes, remux %d bytes", len(a), len(b))
	}
}

func TestReconstruct_FallbackDiscardsToolOutput(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"tool failure", errors.New("exit status 1")},
		{"tool unavailable", ErrToolUnavailable},
		{"tool produces no output", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSegmentServer(t, "")
			dest := filepath.Join(t.TempDir(), "out.mp4")

			var remuxer Remuxer = &brokenRemuxer{err: tt.err}
			if tt.err == nil {
				remuxer = emptyRemuxer{}
			}
			r := NewReconstructor(newTestFetcher(), WithRemuxer(remuxer))

			if _, err := r.Reconstruct(context.Background(), srv.URL+"/hls/index.m3u8", dest); err != nil {
				t.Fatalf("Reconstruct() failed: %v", err)
			}
			assertBytes(t, dest, srv.expected())
		})
	}
}

// emptyRemuxer exits cleanly without producing output.
type emptyRemuxer struct{}

func (emptyRemuxer) Remux(context.Context, string, string) error {
	return nil
}

func TestReconstruct_SegmentFailureAborts(t *testing.T) {
	srv := newSegmentServer(t, "b.ts")
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.mp4")

	r := NewReconstructor(newTestFetcher(WithMaxAttempts(2)))
	_, err := r.Reconstruct(context.Background(), srv.URL+"/hls/index.m3u8", dest)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Reconstruct() error = %v, want ErrFetchFailed", err)
	}

	assertNoFile(t, dest)
	assertNoParts(t, dir)
	// a once, b twice, c never.
	if got := srv.hits.Load(); got != 3 {
		t.Errorf("segment requests = %d, want 3", got)
	}
}

func TestReconstruct_MasterPlaylist(t *testing.T) {
	srv := newSegmentServer(t, "")
	dest := filepath.Join(t.TempDir(), "out.mp4")

	r := NewReconstructor(newTestFetcher(), WithSegmentRate(1000))
	if _, err := r.Reconstruct(context.Background(), srv.URL+"/master.m3u8", dest); err != nil {
		t.Fatalf("Reconstruct() failed: %v", err)
	}
	assertBytes(t, dest, srv.expected())
}

func TestReconstruct_BadManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not a playlist</html>")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.mp4")
	_, err := NewReconstructor(newTestFetcher()).Reconstruct(context.Background(), srv.URL+"/x.m3u8", dest)
	if !errors.Is(err, ErrManifestParse) {
		t.Errorf("Reconstruct() error = %v, want ErrManifestParse", err)
	}
	assertNoFile(t, dest)
}

func TestFFmpeg_Unavailable(t *testing.T) {
	tool := &FFmpeg{Path: filepath.Join(t.TempDir(), "no-such-ffmpeg")}
	err := tool.Remux(context.Background(), "http://127.0.0.1/x.m3u8", filepath.Join(t.TempDir(), "o.mp4"))
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Remux() error = %v, want ErrToolUnavailable", err)
	}
}
