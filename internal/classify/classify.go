// Package classify maps raw failures from the downloader and transcriber
// into the two terminal failure statuses. This is a best-effort substring
// heuristic: a rate limit that slips through as failed only costs a manual
// retry, it never corrupts state.
package classify

import (
	"strings"

	"github.com/rajinder-mohan/yt2txt/internal/db/models"
)

// Known rate-limit indicators, matched case-insensitively against the whole
// error chain text. The bot-check and captcha phrases are what YouTube
// serves when it throttles automated downloads.
var rateLimitIndicators = []string{
	"rate limit",
	"rate-limit",
	"too many requests",
	"429",
	"quota exceeded",
	"sign in to confirm you're not a bot",
	"sign in to confirm you’re not a bot",
	"verify you're not a robot",
	"captcha",
}

// Failure converts an error into a terminal status plus the message to
// persist. Anything not matching a rate-limit indicator is a plain failure,
// including timeouts.
func Failure(err error) (models.Status, string) {
	if err == nil {
		return models.StatusFailed, ""
	}

	msg := err.Error()
	if IsRateLimit(msg) {
		return models.StatusRateLimited, msg
	}

	return models.StatusFailed, msg
}

// IsRateLimit reports whether the error text matches a known rate-limit
// indicator.
func IsRateLimit(msg string) bool {
	lower := strings.ToLower(msg)
	for _, indicator := range rateLimitIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
