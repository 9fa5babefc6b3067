package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientNew(t *testing.T) {
	c := New("https://example.com")

	if c.BaseURL != "https://example.com" {
		t.Errorf("expected base URL 'https://example.com', got '%s'", c.BaseURL)
	}
	if c.HTTPClient == nil {
		t.Error("expected non-nil HTTP client")
	}
}

func TestChallengeDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/challenge/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("page"); got != "/blog/post/" {
			t.Errorf("expected page query, got %q", got)
		}
		var draft Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			t.Errorf("decode draft: %v", err)
		}
		if draft.Name != "Ada" {
			t.Errorf("expected name Ada, got %q", draft.Name)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reason":"challenge","data":{"comment_id":"c1","attestation":"aa","problems":["p"],"difficulty_expect":3,"solutions_expect":1}}`))
	}))
	defer srv.Close()

	ch, err := New(srv.URL).Challenge(context.Background(), "/blog/post/", Draft{Name: "Ada", Email: "ada@example.com", Text: "hi"})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if ch.CommentID != "c1" || ch.DifficultyExpect != 3 || ch.SolutionsExpect != 1 || len(ch.Problems) != 1 {
		t.Fatalf("unexpected challenge %+v", ch)
	}
}

func TestAPIErrorCarriesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"reason":"mint_invalid","data":null}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Comment(context.Background(), "/p/", Submission{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Reason != "mint_invalid" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Comments(context.Background(), "/p/"); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}
