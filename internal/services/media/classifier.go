// Package media classifies, fetches, reconstructs and deduplicates remote media.
package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/j-veylop/mediagate/internal/models"
)

var (
	videoExtensions = map[string]bool{
		".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
	}
	manifestExtensions = map[string]bool{
		".m3u8": true, ".m3u": true,
	}
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".bmp": true, ".avif": true, ".heic": true,
	}
	imageFormats = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "avif": true,
	}
)

// Host and path patterns of common media CDNs. They are weaker signals than
// file extensions and are only consulted when no extension matched.
var (
	videoHosts = []string{"video.twimg.com", "v.redd.it", "video.cdninstagram.com"}
	videoPaths = []string{"/ext_tw_video/", "/amplify_video/", "/tweet_video/", "/videos/"}
	imageHosts = []string{"pbs.twimg.com", "i.imgur.com", "i.redd.it", "images.unsplash.com"}
	imagePaths = []string{"/media/", "/images/", "/img/"}
)

// Classify maps a URL to a media type. The first matching rule wins:
// video extension, manifest extension or "playlist" path, image extension,
// video host pattern, image host pattern, image format query parameter.
func Classify(rawURL string) models.MediaType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.MediaUnknown
	}

	p := strings.ToLower(u.Path)
	ext := path.Ext(p)
	host := strings.ToLower(u.Hostname())

	switch {
	case videoExtensions[ext]:
		return models.MediaVideo
	case manifestExtensions[ext] || strings.Contains(p, "playlist"):
		return models.MediaHLSVideo
	case imageExtensions[ext]:
		return models.MediaImage
	case matchesHost(host, videoHosts) || containsAny(p, videoPaths):
		return models.MediaVideo
	case matchesHost(host, imageHosts) || containsAny(p, imagePaths):
		return models.MediaImage
	case imageFormats[strings.ToLower(u.Query().Get("format"))]:
		return models.MediaImage
	default:
		return models.MediaUnknown
	}
}

// Extension returns the file extension for a destination of the given URL and
// type, preferring the URL's own extension or format parameter.
func Extension(rawURL string, t models.MediaType) string {
	if t == models.MediaHLSVideo {
		return t.DefaultExtension()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return t.DefaultExtension()
	}

	ext := path.Ext(strings.ToLower(u.Path))
	switch {
	case t == models.MediaVideo && videoExtensions[ext]:
		return ext
	case t == models.MediaImage && imageExtensions[ext]:
		return ext
	}

	if format := strings.ToLower(u.Query().Get("format")); t == models.MediaImage && imageFormats[format] {
		return "." + format
	}
	return t.DefaultExtension()
}

func matchesHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
