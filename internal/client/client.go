// Package client provides a Go client for the Perch comment API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alphabot-ai/perch/internal/mint"
)

// Client is a Perch API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Perch client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("perch: %s (%d)", e.Reason, e.Status)
}

// Draft is the comment a visitor is about to post.
type Draft struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Text    string  `json:"text"`
	ReplyTo *string `json:"reply_to,omitempty"`
}

// Challenge is the server's answer to a challenge request.
type Challenge struct {
	CommentID        string   `json:"comment_id"`
	Attestation      string   `json:"attestation"`
	Problems         []string `json:"problems"`
	DifficultyExpect uint8    `json:"difficulty_expect"`
	SolutionsExpect  uint8    `json:"solutions_expect"`
}

// Submission is a draft together with its proof of work.
type Submission struct {
	Draft
	CommentID   string   `json:"comment_id"`
	Attestation string   `json:"attestation"`
	Mints       []string `json:"mints"`
}

// Submitted is returned for an accepted comment.
type Submitted struct {
	CommentID string `json:"comment_id"`
	Approved  bool   `json:"approved"`
}

// Comment is a published comment with its replies.
type Comment struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author_id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	IsOwner  bool      `json:"is_owner"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	UTC      string    `json:"utc"`
	Lines    []string  `json:"lines"`
	Replies  []Comment `json:"replies"`
}

// Challenge asks the server for work to do before posting draft on page.
func (c *Client) Challenge(ctx context.Context, page string, draft Draft) (*Challenge, error) {
	var ch Challenge
	if err := c.do(ctx, http.MethodPost, "/api/challenge/?page="+url.QueryEscape(page), draft, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Comment submits a solved challenge.
func (c *Client) Comment(ctx context.Context, page string, sub Submission) (*Submitted, error) {
	var out Submitted
	if err := c.do(ctx, http.MethodPost, "/api/comment/?page="+url.QueryEscape(page), sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Post runs the whole flow: challenge, solve and submit.
func (c *Client) Post(ctx context.Context, page string, draft Draft) (*Submitted, error) {
	ch, err := c.Challenge(ctx, page, draft)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	mints, err := mint.SolveChallenge(ctx, mint.Challenge{
		Problems:         ch.Problems,
		Difficulty:       ch.DifficultyExpect,
		SolutionsRequire: ch.SolutionsExpect,
	})
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	return c.Comment(ctx, page, Submission{
		Draft:       draft,
		CommentID:   ch.CommentID,
		Attestation: ch.Attestation,
		Mints:       mints,
	})
}

// Moderate follows a moderation link and returns the server's reason.
func (c *Client) Moderate(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	env, err := decode(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Reason: env.Reason}
	}
	return env.Reason, nil
}

// Comments fetches the published comment tree of page.
func (c *Client) Comments(ctx context.Context, page string) ([]Comment, error) {
	var result struct {
		Page     string    `json:"page"`
		Comments []Comment `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, "/page/comments/?page="+url.QueryEscape(page), nil, &result); err != nil {
		return nil, err
	}
	return result.Comments, nil
}

type envelope struct {
	Reason string          `json:"reason"`
	Data   json.RawMessage `json:"data"`
}

func decode(resp *http.Response) (envelope, error) {
	var env envelope
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, string(body))
	}
	return env, nil
}

// do performs a JSON request and decodes the data of a 200 response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env, err := decode(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Reason: env.Reason}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
