package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alphabot-ai/perch/internal/model"
	"github.com/alphabot-ai/perch/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedComment(t *testing.T, st *Store, id string, approved bool, replyTo *string, at time.Time) (model.Page, model.Author) {
	t.Helper()
	ctx := context.Background()
	page, err := st.EnsurePage(ctx, "/blog/post/")
	if err != nil {
		t.Fatalf("ensure page: %v", err)
	}
	author, err := st.EnsureAuthor(ctx, "HASH", "Ada")
	if err != nil {
		t.Fatalf("ensure author: %v", err)
	}
	c := model.Comment{
		ID:        id,
		PageID:    page.ID,
		AuthorID:  author.ID,
		ReplyToID: replyTo,
		Text:      "hello",
		Approved:  approved,
		CreatedAt: at,
	}
	if err := st.CreateComment(ctx, &c); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return page, author
}

func TestEnsurePageIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.EnsurePage(ctx, "/a/")
	if err != nil {
		t.Fatalf("ensure page: %v", err)
	}
	second, err := st.EnsurePage(ctx, "/a/")
	if err != nil {
		t.Fatalf("ensure page again: %v", err)
	}
	if first.ID != second.ID || first.ID == "" {
		t.Fatalf("expected stable page id, got %q and %q", first.ID, second.ID)
	}

	if _, err := st.FindPage(ctx, "/missing/"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureAuthorKeepsFirstName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, err := st.EnsureAuthor(ctx, "HASH", "Ada")
	if err != nil {
		t.Fatalf("ensure author: %v", err)
	}
	b, err := st.EnsureAuthor(ctx, "HASH", "Someone Else")
	if err != nil {
		t.Fatalf("ensure author again: %v", err)
	}
	if a.ID != b.ID || b.Name != "Ada" {
		t.Fatalf("unexpected author: %+v", b)
	}

	got, err := st.GetAuthor(ctx, a.ID)
	if err != nil {
		t.Fatalf("get author: %v", err)
	}
	if got.EmailHash != "HASH" {
		t.Fatalf("unexpected email hash: %s", got.EmailHash)
	}
}

func TestCommentLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	page, _ := seedComment(t, st, "c1", false, nil, time.Now())

	listed, err := st.ListApprovedComments(ctx, page.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected pending comment to be hidden, got %d", len(listed))
	}

	changed, err := st.ApproveComment(ctx, "c1")
	if err != nil || !changed {
		t.Fatalf("approve: changed=%v err=%v", changed, err)
	}
	changed, err = st.ApproveComment(ctx, "c1")
	if err != nil || changed {
		t.Fatalf("second approve: changed=%v err=%v", changed, err)
	}

	got, err := st.GetComment(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Approved || got.AuthorName != "Ada" || got.AuthorEmailHash != "HASH" {
		t.Fatalf("unexpected comment: %+v", got)
	}

	deleted, err := st.DeleteComment(ctx, "c1")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = st.DeleteComment(ctx, "c1")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	if _, err := st.ApproveComment(ctx, "c1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateComment(t *testing.T) {
	st := newTestStore(t)
	page, author := seedComment(t, st, "c1", false, nil, time.Now())

	dup := model.Comment{ID: "c1", PageID: page.ID, AuthorID: author.ID, Text: "again"}
	if err := st.CreateComment(context.Background(), &dup); !errors.Is(err, store.ErrDuplicateComment) {
		t.Fatalf("expected ErrDuplicateComment, got %v", err)
	}
}

func TestListApprovedOrderAndReplies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	page, _ := seedComment(t, st, "c1", true, nil, base)
	parent := "c1"
	seedComment(t, st, "c2", true, &parent, base.Add(time.Minute))
	seedComment(t, st, "c3", false, nil, base.Add(2*time.Minute))

	listed, err := st.ListApprovedComments(ctx, page.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "c2" || listed[1].ID != "c1" {
		t.Fatalf("unexpected listing: %+v", listed)
	}
	if listed[0].ReplyToID == nil || *listed[0].ReplyToID != "c1" {
		t.Fatalf("expected reply to c1, got %v", listed[0].ReplyToID)
	}

	// rejecting a parent removes its replies
	if _, err := st.DeleteComment(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetComment(ctx, "c2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected reply to be removed, got %v", err)
	}
}

func TestAvatarCache(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	author, err := st.EnsureAuthor(ctx, "HASH", "Ada")
	if err != nil {
		t.Fatalf("ensure author: %v", err)
	}

	if _, err := st.GetAvatar(ctx, author.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	refresh := time.Unix(1_800_000_000, 0)
	if err := st.PutAvatar(ctx, model.Avatar{AuthorID: author.ID, Pixels: 80, RefreshAt: refresh}); err != nil {
		t.Fatalf("put empty avatar: %v", err)
	}
	got, err := st.GetAvatar(ctx, author.ID)
	if err != nil {
		t.Fatalf("get avatar: %v", err)
	}
	if !got.Empty() || got.Pixels != 80 || !got.RefreshAt.Equal(refresh) {
		t.Fatalf("unexpected avatar: %+v", got)
	}

	if err := st.PutAvatar(ctx, model.Avatar{AuthorID: author.ID, MIME: "image/png", Data: []byte{1, 2, 3}, Pixels: 80, RefreshAt: refresh}); err != nil {
		t.Fatalf("put avatar: %v", err)
	}
	got, err = st.GetAvatar(ctx, author.ID)
	if err != nil {
		t.Fatalf("get avatar: %v", err)
	}
	if got.MIME != "image/png" || len(got.Data) != 3 {
		t.Fatalf("unexpected avatar: %+v", got)
	}
}
