package posting

import "regexp"

// statusURLPattern implements §4.9 gate 5: x.com/twitter.com status URLs,
// with an optional leading handle segment, the status id, an optional
// trailing /photo/N, and an optional query or fragment.
var statusURLPattern = regexp.MustCompile(
	`^https?://(www\.)?(x\.com|twitter\.com)/(\w{1,15}/)?(status|i/web/status)/\d+(/photo/\d+)?(\?.*)?(#.*)?$`,
)

// isValidStatusURL reports whether url matches the platform's status-URL
// shape, the gate that protects reply/quote_rt drafts from dead or
// malformed target links.
func isValidStatusURL(url string) bool {
	return statusURLPattern.MatchString(url)
}
