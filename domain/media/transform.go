package media

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
)

// Raw provider shapes. Pointers distinguish "section absent" from "section
// empty"; the transform functions apply defaults for optional sections and
// reject records missing required ones.

type rawThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type rawSnippet struct {
	Title        *string                 `json:"title"`
	Description  string                  `json:"description"`
	ChannelID    string                  `json:"channelId"`
	ChannelTitle string                  `json:"channelTitle"`
	PublishedAt  string                  `json:"publishedAt"`
	CategoryID   string                  `json:"categoryId"`
	CustomURL    string                  `json:"customUrl"`
	Tags         []string                `json:"tags"`
	Thumbnails   map[string]rawThumbnail `json:"thumbnails"`
	LiveBroadcastContent string          `json:"liveBroadcastContent"`
}

type rawStatistics struct {
	ViewCount             *string `json:"viewCount"`
	LikeCount             *string `json:"likeCount"`
	CommentCount          *string `json:"commentCount"`
	SubscriberCount       *string `json:"subscriberCount"`
	HiddenSubscriberCount bool    `json:"hiddenSubscriberCount"`
	VideoCount            *string `json:"videoCount"`
}

type rawContentDetails struct {
	Duration  string `json:"duration"`
	ItemCount *int64 `json:"itemCount"`
}

type rawResource struct {
	ID             json.RawMessage    `json:"id"`
	Snippet        *rawSnippet        `json:"snippet"`
	Statistics     *rawStatistics     `json:"statistics"`
	ContentDetails *rawContentDetails `json:"contentDetails"`
}

// TransformVideo validates and normalizes one raw video item.
// Pure and deterministic: identical input always yields identical output.
func TransformVideo(raw json.RawMessage) (Video, error) {
	res, id, err := decodeResource(raw, KindVideo)
	if err != nil {
		return Video{}, err
	}

	sn := res.Snippet
	publishedAt, err := requireTime(sn.PublishedAt, id, "snippet.publishedAt")
	if err != nil {
		return Video{}, err
	}

	v := Video{
		ID:            id,
		Title:         *sn.Title,
		Description:   sn.Description,
		ChannelID:     sn.ChannelID,
		ChannelTitle:  sn.ChannelTitle,
		PublishedAt:   publishedAt,
		CategoryID:    sn.CategoryID,
		Tags:          sn.Tags,
		Thumbnails:    sortThumbnails(sn.Thumbnails),
		LiveBroadcast: defaultString(sn.LiveBroadcastContent, "none"),
	}

	if res.ContentDetails != nil && res.ContentDetails.Duration != "" {
		secs, derr := ParseISODuration(res.ContentDetails.Duration)
		if derr != nil {
			return Video{}, apierror.Validation("video " + id + ": " + derr.Error())
		}
		v.DurationSeconds = secs
	}

	st := res.Statistics
	v.ViewCount = parseCount(statField(st, func(s *rawStatistics) *string { return s.ViewCount }), 0)
	v.LikeCount = parseCount(statField(st, func(s *rawStatistics) *string { return s.LikeCount }), CountUnknown)
	v.CommentCount = parseCount(statField(st, func(s *rawStatistics) *string { return s.CommentCount }), CountUnknown)

	return v, nil
}

// TransformChannel validates and normalizes one raw channel item.
func TransformChannel(raw json.RawMessage) (Channel, error) {
	res, id, err := decodeResource(raw, KindChannel)
	if err != nil {
		return Channel{}, err
	}

	sn := res.Snippet
	publishedAt, err := requireTime(sn.PublishedAt, id, "snippet.publishedAt")
	if err != nil {
		return Channel{}, err
	}

	c := Channel{
		ID:          id,
		Title:       *sn.Title,
		Description: sn.Description,
		CustomURL:   sn.CustomURL,
		PublishedAt: publishedAt,
		Thumbnails:  sortThumbnails(sn.Thumbnails),
	}

	st := res.Statistics
	c.ViewCount = parseCount(statField(st, func(s *rawStatistics) *string { return s.ViewCount }), 0)
	c.VideoCount = parseCount(statField(st, func(s *rawStatistics) *string { return s.VideoCount }), 0)
	if st != nil && st.HiddenSubscriberCount {
		c.SubscriberCount = CountUnknown
	} else {
		c.SubscriberCount = parseCount(statField(st, func(s *rawStatistics) *string { return s.SubscriberCount }), CountUnknown)
	}

	return c, nil
}

// TransformPlaylist validates and normalizes one raw playlist item.
func TransformPlaylist(raw json.RawMessage) (Playlist, error) {
	res, id, err := decodeResource(raw, KindPlaylist)
	if err != nil {
		return Playlist{}, err
	}

	sn := res.Snippet
	publishedAt, err := requireTime(sn.PublishedAt, id, "snippet.publishedAt")
	if err != nil {
		return Playlist{}, err
	}

	p := Playlist{
		ID:          id,
		Title:       *sn.Title,
		Description: sn.Description,
		ChannelID:   sn.ChannelID,
		PublishedAt: publishedAt,
		Thumbnails:  sortThumbnails(sn.Thumbnails),
	}
	if res.ContentDetails != nil && res.ContentDetails.ItemCount != nil {
		p.ItemCount = *res.ContentDetails.ItemCount
	}
	return p, nil
}

// TransformVideos transforms a batch with partial-failure semantics: the
// valid subset is returned alongside per-item errors, never a total failure.
func TransformVideos(items []json.RawMessage) ([]Video, []ItemError) {
	out := make([]Video, 0, len(items))
	var errs []ItemError
	for i, raw := range items {
		v, err := TransformVideo(raw)
		if err != nil {
			errs = append(errs, itemError(i, raw, err))
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// TransformChannels transforms a channel batch; see TransformVideos.
func TransformChannels(items []json.RawMessage) ([]Channel, []ItemError) {
	out := make([]Channel, 0, len(items))
	var errs []ItemError
	for i, raw := range items {
		c, err := TransformChannel(raw)
		if err != nil {
			errs = append(errs, itemError(i, raw, err))
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

// TransformPlaylists transforms a playlist batch; see TransformVideos.
func TransformPlaylists(items []json.RawMessage) ([]Playlist, []ItemError) {
	out := make([]Playlist, 0, len(items))
	var errs []ItemError
	for i, raw := range items {
		p, err := TransformPlaylist(raw)
		if err != nil {
			errs = append(errs, itemError(i, raw, err))
			continue
		}
		out = append(out, p)
	}
	return out, errs
}

// decodeResource parses the common resource shell and enforces the fields
// required for every kind: id and snippet.title.
func decodeResource(raw json.RawMessage, kind ResourceKind) (rawResource, string, error) {
	var res rawResource
	if err := json.Unmarshal(raw, &res); err != nil {
		return rawResource{}, "", apierror.Wrap(apierror.KindValidation, err, string(kind)+": malformed item")
	}

	id, err := decodeID(res.ID, kind)
	if err != nil {
		return rawResource{}, "", err
	}
	if res.Snippet == nil {
		return rawResource{}, "", apierror.Validation(string(kind) + " " + id + ": missing snippet")
	}
	if res.Snippet.Title == nil {
		return rawResource{}, "", apierror.Validation(string(kind) + " " + id + ": missing snippet.title")
	}
	return res, id, nil
}

// decodeID handles both plain string ids and search-result object ids
// ({"kind": "youtube#video", "videoId": "..."}).
func decodeID(raw json.RawMessage, kind ResourceKind) (string, error) {
	if len(raw) == 0 {
		return "", apierror.Validation(string(kind) + ": missing id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", apierror.Validation(string(kind) + ": empty id")
		}
		return s, nil
	}
	var obj struct {
		VideoID    string `json:"videoId"`
		ChannelID  string `json:"channelId"`
		PlaylistID string `json:"playlistId"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", apierror.Wrap(apierror.KindValidation, err, string(kind)+": unreadable id")
	}
	for _, id := range []string{obj.VideoID, obj.ChannelID, obj.PlaylistID} {
		if id != "" {
			return id, nil
		}
	}
	return "", apierror.Validation(string(kind) + ": empty id object")
}

func requireTime(s, id, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, apierror.Validation(id + ": missing " + field)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apierror.Validation(id + ": bad " + field + ": " + err.Error())
	}
	return t.UTC(), nil
}

// parseCount converts the provider's numeric-as-string counters. A missing
// counter maps to the given default (0 or CountUnknown depending on whether
// absence means "none" or "hidden" for that field).
func parseCount(s *string, missing int64) int64 {
	if s == nil || *s == "" {
		return missing
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil || n < 0 {
		return missing
	}
	return n
}

func statField(st *rawStatistics, get func(*rawStatistics) *string) *string {
	if st == nil {
		return nil
	}
	return get(st)
}

// sortThumbnails orders variants by descending resolution, breaking area
// ties by name so the ordering is deterministic.
func sortThumbnails(m map[string]rawThumbnail) []Thumbnail {
	if len(m) == 0 {
		return nil
	}
	type named struct {
		name string
		t    rawThumbnail
	}
	all := make([]named, 0, len(m))
	for name, t := range m {
		if t.URL == "" {
			continue
		}
		all = append(all, named{name, t})
	}
	sort.Slice(all, func(i, j int) bool {
		ai := all[i].t.Width * all[i].t.Height
		aj := all[j].t.Width * all[j].t.Height
		if ai != aj {
			return ai > aj
		}
		return all[i].name < all[j].name
	})
	out := make([]Thumbnail, len(all))
	for i, n := range all {
		out[i] = Thumbnail{URL: n.t.URL, Width: n.t.Width, Height: n.t.Height}
	}
	return out
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func itemError(index int, raw json.RawMessage, err error) ItemError {
	ie := ItemError{Index: index, Err: err, Error: err.Error()}
	// Best-effort id extraction for the report; failures here are fine.
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(raw, &probe) == nil && len(probe.ID) > 0 {
		if id, derr := decodeID(probe.ID, ""); derr == nil {
			ie.ID = id
		}
	}
	return ie
}
