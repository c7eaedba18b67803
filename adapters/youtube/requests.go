package youtube

import (
	"fmt"
	"net/url"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
)

// Endpoint path and default part selection per operation kind. The part
// parameter determines which payload sections the provider returns; callers
// may override it via request params.
var operations = map[provider.OperationKind]struct {
	path        string
	defaultPart string
}{
	provider.OpSearch:            {"/search", "snippet"},
	provider.OpVideosList:        {"/videos", "snippet,contentDetails,statistics"},
	provider.OpChannelsList:      {"/channels", "snippet,statistics"},
	provider.OpPlaylistsList:     {"/playlists", "snippet,contentDetails"},
	provider.OpPlaylistItemsList: {"/playlistItems", "snippet,contentDetails"},
	provider.OpSubscriptionsList: {"/subscriptions", "snippet"},
}

// buildURL renders the full request URL including the API key. The key is
// attached here and nowhere else.
func (c *Client) buildURL(req provider.Request) (string, error) {
	op, ok := operations[req.Op]
	if !ok {
		return "", fmt.Errorf("unsupported operation kind %q", req.Op)
	}

	q := url.Values{}
	q.Set("part", op.defaultPart)
	for k, v := range req.Params {
		if k == "key" {
			// Credentials are never accepted through params.
			continue
		}
		q.Set(k, v)
	}
	q.Set("key", c.apiKey)

	u := *c.baseURL
	u.Path = c.baseURL.Path + op.path
	u.RawQuery = q.Encode()
	return u.String(), nil
}
