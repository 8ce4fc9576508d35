// Package videoid normalizes YouTube video identifiers. Callers may pass a
// bare 11-character ID or any common watch URL form; everything downstream
// keys on the extracted ID.
package videoid

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

	// Ordered URL patterns; first match wins.
	urlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|m\.youtube\.com/watch\?v=)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/watch\?.*[&?]v=([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	}

	urlHint = regexp.MustCompile(`[?&=/]`)
)

// Extract returns the video ID from a YouTube URL, or the input itself when
// it is already a bare ID. Supported URL forms:
//
//	https://www.youtube.com/watch?v=VIDEO_ID
//	https://youtu.be/VIDEO_ID
//	https://www.youtube.com/embed/VIDEO_ID
//	https://www.youtube.com/v/VIDEO_ID
//	https://m.youtube.com/watch?v=VIDEO_ID
func Extract(urlOrID string) (string, error) {
	s := strings.TrimSpace(urlOrID)
	if s == "" {
		return "", fmt.Errorf("empty video identifier")
	}

	// No URL-ish characters: treat as a bare ID.
	if !urlHint.MatchString(s) {
		if !idRegex.MatchString(s) {
			return "", fmt.Errorf("invalid video ID %q", s)
		}
		return s, nil
	}

	for _, pattern := range urlPatterns {
		if m := pattern.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}

	return "", fmt.Errorf("could not extract video ID from %q", s)
}

// Valid reports whether s is a well-formed bare video ID.
func Valid(s string) bool {
	return idRegex.MatchString(s)
}

// Normalize extracts video IDs from a mixed list of IDs and URLs, dropping
// duplicates while preserving first-seen order. Invalid entries are returned
// in a separate map keyed by the original input.
func Normalize(inputs []string) ([]string, map[string]error) {
	seen := make(map[string]bool, len(inputs))
	ids := make([]string, 0, len(inputs))
	invalid := make(map[string]error)

	for _, input := range inputs {
		id, err := Extract(input)
		if err != nil {
			invalid[input] = err
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids, invalid
}
