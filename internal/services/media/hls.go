package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/j-veylop/mediagate/internal/config"
	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
)

const defaultToolTimeout = 5 * time.Minute

// Remuxer turns a manifest URL into a single container file at dest.
type Remuxer interface {
	Remux(ctx context.Context, manifestURL, dest string) error
}

// FFmpeg remuxes with the ffmpeg binary, copying streams without re-encoding.
type FFmpeg struct {
	// UserAgent supplies the user-agent ffmpeg sends; may be nil.
	UserAgent func() string
	Path      string
	Timeout   time.Duration
}

// Remux runs ffmpeg under its wall-clock timeout. A missing binary yields an
// error wrapping ErrToolUnavailable.
func (f *FFmpeg) Remux(ctx context.Context, manifestURL, dest string) error {
	name := f.Path
	if name == "" {
		name = "ffmpeg"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}
	if f.UserAgent != nil {
		args = append(args, "-user_agent", f.UserAgent())
	}
	args = append(args,
		"-protocol_whitelist", "file,http,https,tcp,tls,crypto",
		"-i", manifestURL,
		"-c", "copy",
		"-f", "mp4",
		dest,
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, bin, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &limitedWriter{w: &stderr, n: 16 * 1024}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("ffmpeg timed out after %s", timeout)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Reconstructor builds one local video file from an HLS manifest. It tries
// the remuxer first and falls back to downloading and concatenating segments.
type Reconstructor struct {
	fetcher *Fetcher
	remuxer Remuxer
	limiter *rate.Limiter
}

// ReconstructorOption configures a Reconstructor.
type ReconstructorOption func(*Reconstructor)

// WithRemuxer sets the preferred strategy. A nil remuxer disables it.
func WithRemuxer(r Remuxer) ReconstructorOption {
	return func(rc *Reconstructor) {
		rc.remuxer = r
	}
}

// WithSegmentRate limits segment requests of the fallback to perSecond.
// Zero or less means unlimited.
func WithSegmentRate(perSecond float64) ReconstructorOption {
	return func(rc *Reconstructor) {
		if perSecond <= 0 {
			rc.limiter = nil
			return
		}
		rc.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewReconstructor creates a reconstructor that fetches with f.
func NewReconstructor(f *Fetcher, opts ...ReconstructorOption) *Reconstructor {
	r := &Reconstructor{fetcher: f}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewReconstructorFromConfig creates a reconstructor using ffmpeg at the
// configured path.
func NewReconstructorFromConfig(cfg *config.Config, f *Fetcher) *Reconstructor {
	return NewReconstructor(f,
		WithRemuxer(&FFmpeg{Path: cfg.FFmpegPath, Timeout: cfg.HLSToolTimeout, UserAgent: f.UserAgent}),
		WithSegmentRate(cfg.HLSSegmentRate),
	)
}

// Reconstruct writes the video behind manifestURL to dest and returns dest.
// Output of a failed strategy is removed before the next one starts, so the
// result never mixes the two.
func (r *Reconstructor) Reconstruct(ctx context.Context, manifestURL, dest string) (string, error) {
	if r.remuxer != nil {
		err := r.remuxer.Remux(ctx, manifestURL, dest)
		if err == nil {
			if nonEmpty(dest) {
				logger.Debug("manifest remuxed", "url", manifestURL, "path", dest)
				return dest, nil
			}
			err = errors.New("remux produced no output")
		}
		removeFile(dest)

		if errors.Is(err, ErrToolUnavailable) {
			logger.Debug("remux tool unavailable, concatenating segments", "url", manifestURL)
		} else {
			logger.Warn("remux failed, concatenating segments", "url", manifestURL, "error", err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if err := r.concatenate(ctx, manifestURL, dest); err != nil {
		removeFile(dest)
		return "", err
	}
	return dest, nil
}

// Segments fetches and parses the manifest, following a master playlist to
// its highest-bandwidth variant.
func (r *Reconstructor) Segments(ctx context.Context, manifestURL string) ([]models.Segment, error) {
	p, err := r.playlist(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	if variant, ok := p.BestVariant(); ok {
		logger.Debug("selected variant", "url", variant.URI, "bandwidth", variant.Bandwidth)
		p, err = r.playlist(ctx, variant.URI)
		if err != nil {
			return nil, err
		}
		if p.Master() {
			return nil, &ManifestError{URL: variant.URI, Reason: "nested master playlist"}
		}
	}
	return p.Segments, nil
}

func (r *Reconstructor) playlist(ctx context.Context, manifestURL string) (*Playlist, error) {
	data, base, err := r.fetcher.FetchManifest(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	return ParsePlaylist(data, base)
}

// concatenate appends every segment to dest in manifest order.
func (r *Reconstructor) concatenate(ctx context.Context, manifestURL, dest string) error {
	segments, err := r.Segments(ctx, manifestURL)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	for _, seg := range segments {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				_ = out.Close()
				return err
			}
		}
		if err := r.appendSegment(ctx, out, seg, dest); err != nil {
			_ = out.Close()
			return fmt.Errorf("segment %d: %w", seg.Index, err)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}
	logger.Debug("segments concatenated", "url", manifestURL, "segments", len(segments), "path", dest)
	return nil
}

// appendSegment downloads one segment to a side file with the fetcher's retry
// discipline, then copies it onto out. A failed attempt never touches out.
func (r *Reconstructor) appendSegment(ctx context.Context, out io.Writer, seg models.Segment, dest string) error {
	part := fmt.Sprintf("%s.part%d", dest, seg.Index)
	if _, err := r.fetcher.Fetch(ctx, seg.URI, part); err != nil {
		return err
	}
	defer removeFile(part)

	in, err := os.Open(part)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to append %s: %w", part, err)
	}
	return nil
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
