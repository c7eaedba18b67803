// Package provider defines value types for talking to the upstream video API.
// These are pure data types; the HTTP transport lives in adapters/youtube.
package provider

// OperationKind names a category of provider call with a fixed quota cost.
type OperationKind string

const (
	OpSearch            OperationKind = "search"
	OpVideosList        OperationKind = "videos.list"
	OpChannelsList      OperationKind = "channels.list"
	OpPlaylistsList     OperationKind = "playlists.list"
	OpPlaylistItemsList OperationKind = "playlistItems.list"
	OpSubscriptionsList OperationKind = "subscriptions.list"
)

// Kinds lists every supported operation kind.
func Kinds() []OperationKind {
	return []OperationKind{
		OpSearch,
		OpVideosList,
		OpChannelsList,
		OpPlaylistsList,
		OpPlaylistItemsList,
		OpSubscriptionsList,
	}
}

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OpSearch, OpVideosList, OpChannelsList, OpPlaylistsList,
		OpPlaylistItemsList, OpSubscriptionsList:
		return true
	}
	return false
}

// Priority orders competing callers at the rate limiter.
// Foreground requests (user-visible actions) are admitted before background
// requests (prefetch, refresh) of equal arrival order.
type Priority int

const (
	PriorityBackground Priority = 0
	PriorityForeground Priority = 1
)

// String returns the priority name for logging.
func (p Priority) String() string {
	if p == PriorityForeground {
		return "foreground"
	}
	return "background"
}

// MaxBatchIDs is the provider's documented ceiling on identifiers per
// list-style call.
const MaxBatchIDs = 50

// Request is a single provider call (value type). Params never contains
// credential material; the transport appends the API key at call time.
type Request struct {
	Op     OperationKind
	Params map[string]string
}

// Response is the raw outcome of one provider call. Body is opaque until the
// transformation pipeline validates it.
type Response struct {
	Status    int
	Body      []byte
	LatencyMs int64
}

// ChunkIDs splits ids into provider-sized batches, preserving order.
func ChunkIDs(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+MaxBatchIDs-1)/MaxBatchIDs)
	for len(ids) > MaxBatchIDs {
		chunks = append(chunks, ids[:MaxBatchIDs])
		ids = ids[MaxBatchIDs:]
	}
	return append(chunks, ids)
}
