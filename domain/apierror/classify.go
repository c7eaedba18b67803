package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// providerErrorBody mirrors the provider's JSON error envelope:
//
//	{"error": {"code": 403, "message": "...", "errors": [{"reason": "quotaExceeded", ...}]}}
type providerErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Domain  string `json:"domain"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// Quota-related reasons the provider reports on HTTP 403.
var quotaReasons = map[string]bool{
	"quotaExceeded":        true,
	"dailyLimitExceeded":   true,
	"rateLimitExceeded":    true,
	"userRateLimitExceeded": true,
}

// Auth-related reasons on 401/403.
var authReasons = map[string]bool{
	"authError":         true,
	"keyInvalid":        true,
	"keyExpired":        true,
	"unauthorized":      true,
	"forbidden.accessNotConfigured": true,
}

var keyParamRe = regexp.MustCompile(`([?&]key=)[^&\s]+`)

// SanitizeDetail strips credential material (the key= query parameter) from a
// technical detail string before it is stored on an error or logged.
func SanitizeDetail(s string) string {
	return keyParamRe.ReplaceAllString(s, "${1}REDACTED")
}

// Classify maps a raw transport or provider failure into a typed error.
// Exactly one of err (transport-level failure) or status/body (an HTTP
// response that arrived) is meaningful. Classification rules are applied in
// priority order; the result is a pure function of the inputs.
func Classify(err error, status int, body []byte) *Error {
	if err != nil {
		return classifyTransport(err)
	}

	reason, message := parseProviderBody(body)
	detail := SanitizeDetail(message)

	switch {
	case status == 401:
		return Wrap(KindAuthentication, nil, detail).WithStatus(status).
			WithHint("check that the API key is valid and enabled")
	case status == 403 && quotaReasons[reason]:
		// rateLimitExceeded on 403 is the provider's per-day quota form,
		// distinct from HTTP 429.
		if reason == "userRateLimitExceeded" {
			return Wrap(KindRateLimited, nil, detail).WithStatus(status)
		}
		return Wrap(KindQuotaExceeded, nil, detail).WithStatus(status).
			WithHint("quota replenishes at the provider's daily reset")
	case status == 403 && (authReasons[reason] || reason == ""):
		return Wrap(KindAuthentication, nil, detail).WithStatus(status).
			WithHint("verify the API key has access to this API")
	case status == 403:
		return Wrap(KindForbidden, nil, detail).WithStatus(status)
	case status == 429:
		return Wrap(KindRateLimited, nil, detail).WithStatus(status)
	case status == 404:
		return Wrap(KindNotFound, nil, detail).WithStatus(status).
			WithHint("check the resource identifier")
	case status == 400:
		return Wrap(KindInvalidRequest, nil, detail).WithStatus(status).
			WithHint("fix the request parameters")
	case status >= 500 && status <= 599:
		return Wrap(KindServer, nil, detail).WithStatus(status)
	case status >= 200 && status <= 299:
		// Callers classify only on failure; a 2xx here is a logic bug upstream.
		return Wrap(KindUnknown, nil, "classify called on success status").WithStatus(status)
	default:
		return Wrap(KindUnknown, nil, detail).WithStatus(status)
	}
}

func classifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(KindTimeout, err, "")
	case errors.Is(err, context.Canceled):
		return Wrap(KindCancelled, err, "")
	}

	// url.Error wraps both; unwrap to find the context errors a client
	// timeout surfaces as, then treat the rest as network failures.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return Wrap(KindTimeout, err, SanitizeDetail(uerr.Error()))
		}
		return Wrap(KindNetwork, err, SanitizeDetail(uerr.Error()))
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return Wrap(KindTimeout, err, SanitizeDetail(nerr.Error()))
		}
		return Wrap(KindNetwork, err, SanitizeDetail(nerr.Error()))
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Wrap(KindNetwork, err, SanitizeDetail(dnsErr.Error()))
	}

	return Wrap(KindUnknown, err, SanitizeDetail(err.Error()))
}

// parseProviderBody pulls the first error reason and message out of the
// provider's JSON error envelope. Unparseable bodies yield empty values.
func parseProviderBody(body []byte) (reason, message string) {
	if len(body) == 0 {
		return "", ""
	}
	var pb providerErrorBody
	if err := json.Unmarshal(body, &pb); err != nil {
		// Keep a short prefix of non-JSON bodies for diagnostics.
		s := strings.TrimSpace(string(body))
		if len(s) > 200 {
			s = s[:200]
		}
		return "", s
	}
	if len(pb.Error.Errors) > 0 {
		reason = pb.Error.Errors[0].Reason
	}
	return reason, pb.Error.Message
}
