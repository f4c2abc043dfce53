package channels

import "strings"

// metaAuthCodes are Graph API error codes that mean the platform rejected
// our credential rather than the request.
var metaAuthCodes = map[int]bool{
	102: true, // session key invalid
	190: true, // access token invalid or expired
	10:  true, // permission denied
	104: true, // access token required
}

var metaRateCodes = map[int]bool{
	4:   true, // application request limit
	17:  true, // user request limit
	32:  true, // page request limit
	613: true, // custom rate limit
}

// authSignatures is the free-text fallback for providers that only return
// prose. Matching is case-insensitive substring.
var authSignatures = []string{
	"error validating access token",
	"invalid oauth access token",
	"session has expired",
	"session has been invalidated",
	"permissions error",
	"permission denied",
	"the user has not authorized",
	"token has been revoked",
	"expired access token",
}

// ClassifyMeta maps a Graph API error code (with optional subcode and
// message) to an ErrorKind.
func ClassifyMeta(code int, message string) ErrorKind {
	switch {
	case metaAuthCodes[code]:
		return KindAuth
	case code >= 200 && code <= 299: // permission family
		return KindAuth
	case metaRateCodes[code]:
		return KindRateLimit
	case code == 100:
		return KindValidate
	case code == 1 || code == 2:
		return KindTransient
	}
	return ClassifyMessage(message)
}

// ClassifyMessage is the signature-match fallback used when no structured
// code is available.
func ClassifyMessage(message string) ErrorKind {
	lower := strings.ToLower(message)
	for _, sig := range authSignatures {
		if strings.Contains(lower, sig) {
			return KindAuth
		}
	}
	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return KindRateLimit
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "temporarily unavailable"),
		strings.Contains(lower, "please retry"):
		return KindTransient
	}
	return KindUnknown
}

// IsAuthError reports whether a free-text failure message looks like the
// platform rejected the linked account's credential.
func IsAuthError(message string) bool {
	return ClassifyMessage(message) == KindAuth
}
