package httpapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alphabot-ai/perch/internal/config"
	"github.com/alphabot-ai/perch/internal/model"
)

func strptr(s string) *string { return &s }

func TestNewServerRequiresCollaborators(t *testing.T) {
	if _, err := NewServer(Deps{}, config.Default()); err == nil {
		t.Fatal("expected error without store, issuer, engine and limiter")
	}
}

func TestBuildCommentTree(t *testing.T) {
	now := time.Now()
	comments := []model.Comment{
		{ID: "b", CreatedAt: now},
		{ID: "b1", ReplyToID: strptr("b"), CreatedAt: now},
		{ID: "a", CreatedAt: now.Add(-time.Hour)},
		{ID: "b1x", ReplyToID: strptr("b1"), CreatedAt: now},
		{ID: "orphan", ReplyToID: strptr("gone"), CreatedAt: now},
	}

	tree := buildCommentTree(comments)
	if len(tree) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(tree))
	}
	if tree[0].Comment.ID != "b" || tree[1].Comment.ID != "a" {
		t.Fatalf("roots out of order: %s, %s", tree[0].Comment.ID, tree[1].Comment.ID)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Comment.ID != "b1" {
		t.Fatalf("unexpected children of b: %+v", tree[0].Children)
	}
	if len(tree[0].Children[0].Children) != 1 || tree[0].Children[0].Children[0].Comment.ID != "b1x" {
		t.Fatalf("expected nested reply under b1")
	}
	if len(tree[1].Children) != 0 {
		t.Fatalf("a should have no replies")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(req, false); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 203.0.113.9")
	if got := clientIP(req, false); got != "10.0.0.1" {
		t.Fatalf("expected forwarded header to be ignored without a trusted proxy, got %q", got)
	}
	if got := clientIP(req, true); got != "203.0.113.9" {
		t.Fatalf("expected hop appended by the proxy, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", " ")
	if got := clientIP(req, true); got != "10.0.0.1" {
		t.Fatalf("expected remote host for blank header, got %q", got)
	}
}

func TestCommentFieldsValidate(t *testing.T) {
	cases := []struct {
		name   string
		fields commentFields
		ok     bool
	}{
		{"valid", commentFields{Name: " Ada ", Email: "ada@example.com", Text: "hi"}, true},
		{"blank reply", commentFields{Name: "Ada", Email: "ada@example.com", Text: "hi", ReplyTo: strptr(" ")}, true},
		{"no name", commentFields{Email: "ada@example.com", Text: "hi"}, false},
		{"bad email", commentFields{Name: "Ada", Email: "ada", Text: "hi"}, false},
		{"blank text", commentFields{Name: "Ada", Email: "ada@example.com", Text: "  "}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.fields
			err := f.validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
			if tc.ok && (f.Name != "Ada" || f.ReplyTo != nil) {
				t.Fatalf("expected trimmed fields, got %+v", f)
			}
		})
	}
}
