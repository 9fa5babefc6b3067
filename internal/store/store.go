package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/perch/internal/model"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateComment = errors.New("duplicate comment")
)

type Store interface {
	PageStore
	AuthorStore
	CommentStore
	AvatarStore
	Ping(ctx context.Context) error
	Close() error
}

type PageStore interface {
	FindPage(ctx context.Context, path string) (model.Page, error)
	EnsurePage(ctx context.Context, path string) (model.Page, error)
}

type AuthorStore interface {
	GetAuthor(ctx context.Context, id string) (model.Author, error)
	EnsureAuthor(ctx context.Context, emailHash, name string) (model.Author, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (model.Comment, error)
	// ApproveComment reports whether the comment changed state.
	ApproveComment(ctx context.Context, id string) (bool, error)
	// DeleteComment reports whether a row was removed.
	DeleteComment(ctx context.Context, id string) (bool, error)
	ListApprovedComments(ctx context.Context, pageID string) ([]model.Comment, error)
}

type AvatarStore interface {
	GetAvatar(ctx context.Context, authorID string) (model.Avatar, error)
	PutAvatar(ctx context.Context, avatar model.Avatar) error
}
