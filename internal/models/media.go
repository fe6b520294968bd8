package models

import (
	"errors"
	"os"
	"time"
)

// MediaType classifies a remote media URL.
type MediaType int

const (
	// MediaUnknown is a URL that matched no rule; it is fetched as a plain file.
	MediaUnknown MediaType = iota
	// MediaImage is a still image.
	MediaImage
	// MediaVideo is a directly downloadable video file.
	MediaVideo
	// MediaHLSVideo is a segmented streaming manifest.
	MediaHLSVideo
)

// String returns the wire name of the media type.
func (t MediaType) String() string {
	switch t {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaHLSVideo:
		return "hls_video"
	default:
		return "unknown"
	}
}

// ParseMediaType is the inverse of MediaType.String.
func ParseMediaType(s string) MediaType {
	switch s {
	case "image":
		return MediaImage
	case "video":
		return MediaVideo
	case "hls_video":
		return MediaHLSVideo
	default:
		return MediaUnknown
	}
}

// DefaultExtension returns the file extension used for destinations of this type.
func (t MediaType) DefaultExtension() string {
	switch t {
	case MediaImage:
		return ".jpg"
	case MediaVideo, MediaHLSVideo:
		return ".mp4"
	default:
		return ".bin"
	}
}

// TaskStatus is the outcome of a MediaTask.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskDuplicate TaskStatus = "duplicate"
)

// MediaTask is one download owned by the caller for its lifetime.
type MediaTask struct {
	CreatedAt time.Time
	Err       error
	ID        string
	BatchID   string
	URL       string
	Path      string
	Hash      string
	Status    TaskStatus
	Type      MediaType
	Bytes     int64
	Duration  time.Duration
}

// Succeeded reports whether the task produced a file that is still kept.
func (t *MediaTask) Succeeded() bool {
	return t.Status == TaskCompleted
}

// ErrorString returns the task error text or "".
func (t *MediaTask) ErrorString() string {
	if t.Err == nil {
		return ""
	}
	return t.Err.Error()
}

// Segment is one media segment of an HLS manifest.
type Segment struct {
	URI   string
	Index int
	// Init marks an EXT-X-MAP initialization section.
	Init bool
}

// Batch is the result of one acquisition request.
type Batch struct {
	StartedAt time.Time
	ID        string
	Reason    string
	Tasks     []*MediaTask
	Admitted  bool
}

// Paths returns the destination paths of the tasks that kept a file.
func (b *Batch) Paths() []string {
	var paths []string
	for _, t := range b.Tasks {
		if t.Succeeded() {
			paths = append(paths, t.Path)
		}
	}
	return paths
}

// Succeeded reports whether at least one task produced a file.
func (b *Batch) Succeeded() bool {
	return len(b.Paths()) > 0
}

// Failed returns the tasks that ended in failure.
func (b *Batch) Failed() []*MediaTask {
	var failed []*MediaTask
	for _, t := range b.Tasks {
		if t.Status == TaskFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// Cleanup removes the files kept by the batch.
func (b *Batch) Cleanup() error {
	var errs []error
	for _, p := range b.Paths() {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
