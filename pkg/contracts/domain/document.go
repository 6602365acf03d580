package domain

import "time"

// DocumentDescriptor identifies one press-release PDF discovered on the
// source site. Immutable once produced by the link source.
type DocumentDescriptor struct {
	// Identity is the stable key for caching and deduplication; the
	// canonical document URL.
	Identity string `json:"identity"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Period   Period `json:"period"`
}

// TaskState is the lifecycle state of one download task.
type TaskState string

const (
	TaskPending     TaskState = "pending"
	TaskDownloading TaskState = "downloading"
	TaskRetrying    TaskState = "retrying"
	TaskSucceeded   TaskState = "succeeded"
	TaskFailed      TaskState = "failed"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// CacheEntry records a previously fetched artifact for a document identity.
type CacheEntry struct {
	Identity  string    `json:"identity"`
	Path      string    `json:"path"`
	FetchedAt time.Time `json:"fetched_at"`
}
