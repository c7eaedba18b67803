// Package media provides canonical record types for provider resources and
// the pure transformation pipeline that produces them from raw payloads.
// Everything downstream of this package trusts the canonical types; raw
// provider shapes never escape it.
package media

import "time"

// CountUnknown marks a counter the provider omitted (e.g. hidden like
// counts). It is distinct from a real zero.
const CountUnknown int64 = -1

// ResourceKind names a canonical record type.
type ResourceKind string

const (
	KindVideo    ResourceKind = "video"
	KindChannel  ResourceKind = "channel"
	KindPlaylist ResourceKind = "playlist"
)

// Thumbnail is one image variant. Slices of thumbnails are always ordered by
// descending resolution.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Video is the canonical video record. All required fields are populated;
// optional source fields carry documented defaults.
type Video struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	ChannelID       string      `json:"channel_id"`
	ChannelTitle    string      `json:"channel_title"`
	PublishedAt     time.Time   `json:"published_at"`
	DurationSeconds int64       `json:"duration_seconds"`
	ViewCount       int64       `json:"view_count"`
	LikeCount       int64       `json:"like_count"`    // CountUnknown when hidden
	CommentCount    int64       `json:"comment_count"` // CountUnknown when hidden
	CategoryID      string      `json:"category_id"`
	Tags            []string    `json:"tags"`
	Thumbnails      []Thumbnail `json:"thumbnails"`
	LiveBroadcast   string      `json:"live_broadcast"` // "none", "live", "upcoming"
}

// Channel is the canonical channel record.
type Channel struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	CustomURL       string      `json:"custom_url"`
	PublishedAt     time.Time   `json:"published_at"`
	SubscriberCount int64       `json:"subscriber_count"` // CountUnknown when hidden
	VideoCount      int64       `json:"video_count"`
	ViewCount       int64       `json:"view_count"`
	Thumbnails      []Thumbnail `json:"thumbnails"`
}

// Playlist is the canonical playlist record.
type Playlist struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ChannelID   string      `json:"channel_id"`
	PublishedAt time.Time   `json:"published_at"`
	ItemCount   int64       `json:"item_count"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
}

// ItemError reports a per-item transformation failure inside a batch.
// A failed item never aborts the batch.
type ItemError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   error  `json:"-"`
	Error string `json:"error"`
}
