package media

import (
	"encoding/json"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/apierror"
)

// Envelope is the parsed shell of a provider list response: untransformed
// items plus pagination metadata.
type Envelope struct {
	Kind          string
	Items         []json.RawMessage
	NextPageToken string
	TotalResults  int64
	PerPage       int64
}

// ParseListResponse decodes the provider's list envelope without touching the
// items themselves; item validation happens in the Transform functions.
func ParseListResponse(body []byte) (Envelope, error) {
	var raw struct {
		Kind          string            `json:"kind"`
		NextPageToken string            `json:"nextPageToken"`
		Items         []json.RawMessage `json:"items"`
		PageInfo      struct {
			TotalResults   int64 `json:"totalResults"`
			ResultsPerPage int64 `json:"resultsPerPage"`
		} `json:"pageInfo"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, apierror.Wrap(apierror.KindValidation, err, "unparseable list response")
	}
	if raw.Kind == "" && raw.Items == nil {
		return Envelope{}, apierror.Validation("response is not a list envelope")
	}
	return Envelope{
		Kind:          raw.Kind,
		Items:         raw.Items,
		NextPageToken: raw.NextPageToken,
		TotalResults:  raw.PageInfo.TotalResults,
		PerPage:       raw.PageInfo.ResultsPerPage,
	}, nil
}
