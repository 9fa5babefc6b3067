package model

import "time"

type Page struct {
	ID        string
	Path      string
	CreatedAt time.Time
}

type Author struct {
	ID        string
	EmailHash string
	Name      string
	CreatedAt time.Time
}

// Comment.ID is the id the client received with its challenge.
type Comment struct {
	ID              string
	PageID          string
	AuthorID        string
	ReplyToID       *string
	Text            string
	Approved        bool
	CreatedAt       time.Time
	AuthorName      string
	AuthorEmailHash string
}

type CommentNode struct {
	Comment  Comment
	Children []CommentNode
}

// Avatar is a cached avatar lookup. A nil Data records that the author has
// no avatar upstream.
type Avatar struct {
	AuthorID  string
	MIME      string
	Data      []byte
	Pixels    int
	RefreshAt time.Time
}

func (a Avatar) Empty() bool {
	return len(a.Data) == 0
}
