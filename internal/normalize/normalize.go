// Package normalize canonicalizes page paths and author emails.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrEmptyPage = errors.New("normalize: empty page path")

// PageURL drops any query string or fragment, removes empty segments,
// lower-cases the path and wraps it in single leading and trailing slashes.
// The site root normalizes to "/". The result is stable under reapplication.
func PageURL(page string) (string, error) {
	path, _, _ := strings.Cut(page, "?")
	path, _, _ = strings.Cut(path, "#")
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrEmptyPage
	}

	segments := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return "/", nil
	}
	return "/" + strings.ToLower(strings.Join(segments, "/")) + "/", nil
}

func Email(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailHash is the upper-case hex SHA-256 of the normalized email.
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(Email(email)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
