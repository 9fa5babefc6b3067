// Package checker confirms that a page exists on the commented site before
// comments are accepted for it.
package checker

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const userAgent = "perch (checker)"

// HTTPChecker issues HEAD requests against the site base URL.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func New(baseURL string, log zerolog.Logger) *HTTPChecker {
	return &HTTPChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 1 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		log: log,
	}
}

// PageExists reports whether baseURL+page answers HEAD with a 2xx status.
// Any transport error counts as missing.
func (c *HTTPChecker) PageExists(ctx context.Context, page string) bool {
	target := c.baseURL + page
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		c.log.Error().Err(err).Str("url", target).Msg("build page check request")
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", target).Msg("page check failed")
		return false
	}
	resp.Body.Close()

	exists := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.log.Debug().Str("url", target).Int("status", resp.StatusCode).Bool("exists", exists).Msg("checked page")
	return exists
}
