package media

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/j-veylop/mediagate/internal/models"
)

// Variant is one rendition of a master playlist.
type Variant struct {
	URI       string
	Bandwidth int
}

// Playlist is a parsed HLS manifest. A master playlist carries variants, a
// media playlist carries segments.
type Playlist struct {
	Variants []Variant
	Segments []models.Segment
}

// Master reports whether the playlist lists variants instead of segments.
func (p *Playlist) Master() bool {
	return len(p.Variants) > 0
}

// BestVariant returns the variant with the highest bandwidth. Ties keep the
// first listed.
func (p *Playlist) BestVariant() (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	best := p.Variants[0]
	for _, v := range p.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

// ParsePlaylist parses manifest data. Relative URIs are resolved against
// base, the URL the manifest was served from.
func ParsePlaylist(data []byte, base *url.URL) (*Playlist, error) {
	manifest := base.String()
	fail := func(line int, format string, args ...any) error {
		return &ManifestError{URL: manifest, Line: line, Reason: fmt.Sprintf(format, args...)}
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), maxManifestSize)

	p := &Playlist{}
	lineNo := 0
	header := false
	var pendingVariant *Variant
	lastMap := ""

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if !header {
			if line != "#EXTM3U" {
				return nil, fail(lineNo, "missing #EXTM3U header")
			}
			header = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			bw, _ := strconv.Atoi(attrs["BANDWIDTH"])
			pendingVariant = &Variant{Bandwidth: bw}

		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			if _, ok := attrs["BYTERANGE"]; ok {
				return nil, fail(lineNo, "byte-range initialization sections are not supported")
			}
			uri := attrs["URI"]
			if uri == "" {
				return nil, fail(lineNo, "EXT-X-MAP without URI")
			}
			if uri == lastMap {
				continue
			}
			lastMap = uri
			resolved, err := resolve(base, uri)
			if err != nil {
				return nil, fail(lineNo, "invalid map URI %q: %v", uri, err)
			}
			p.Segments = append(p.Segments, models.Segment{URI: resolved, Index: len(p.Segments), Init: true})

		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if method := attrs["METHOD"]; method != "" && method != "NONE" {
				return nil, fail(lineNo, "encrypted stream (METHOD=%s) is not supported", method)
			}

		case strings.HasPrefix(line, "#EXT-X-BYTERANGE"):
			return nil, fail(lineNo, "byte-range segments are not supported")

		case strings.HasPrefix(line, "#"):
			// Other tags and comments carry nothing needed for concatenation.

		default:
			resolved, err := resolve(base, line)
			if err != nil {
				return nil, fail(lineNo, "invalid URI %q: %v", line, err)
			}
			if pendingVariant != nil {
				pendingVariant.URI = resolved
				p.Variants = append(p.Variants, *pendingVariant)
				pendingVariant = nil
				continue
			}
			p.Segments = append(p.Segments, models.Segment{URI: resolved, Index: len(p.Segments)})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fail(lineNo, "read failed: %v", err)
	}

	if !header {
		return nil, fail(0, "empty playlist")
	}
	if pendingVariant != nil {
		return nil, fail(lineNo, "EXT-X-STREAM-INF without URI")
	}
	if p.Master() && len(p.Segments) > 0 {
		return nil, fail(0, "playlist mixes variants and segments")
	}
	if !p.Master() && !hasMediaSegment(p.Segments) {
		return nil, fail(0, "no segments")
	}
	return p, nil
}

func hasMediaSegment(segments []models.Segment) bool {
	for _, s := range segments {
		if !s.Init {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// parseAttributes parses an HLS attribute list: KEY=value pairs separated by
// commas, where quoted values may contain commas.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for s != "" {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				value, s = s[1:], ""
			} else {
				value, s = s[1:end+1], s[end+2:]
			}
			if i := strings.IndexByte(s, ','); i >= 0 {
				s = s[i+1:]
			} else {
				s = ""
			}
		} else if i := strings.IndexByte(s, ','); i >= 0 {
			value, s = s[:i], s[i+1:]
		} else {
			value, s = s, ""
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs
}
