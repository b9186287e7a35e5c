package models

import (
	"time"

	"github.com/google/uuid"
)

// Post represents a forum post together with its tags, likes and comments.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	DateCreated time.Time `json:"dateCreated"`
	Tags        []string  `json:"tags"`
	Likes       int64     `json:"likes"`
	Comments    []Comment `json:"comments"`
}

// Comment is a reply appended to a post. Comments keep insertion order.
type Comment struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// NewPost is the creation payload. The author always comes from the request path.
type NewPost struct {
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content" validate:"required"`
	Tags    []string `json:"tags" validate:"omitempty,dive,required"`
}

// PostPatch carries a partial update; nil fields are left untouched.
type PostPatch struct {
	Title   *string   `json:"title" validate:"omitnil,min=1"`
	Content *string   `json:"content" validate:"omitnil,min=1"`
	Tags    *[]string `json:"tags" validate:"omitnil,dive,required"`
}

// NewComment is the body of the add-comment request.
type NewComment struct {
	Message string `json:"message" validate:"required"`
}

// Validate requires at least one field to be present.
func (p PostPatch) Validate() error {
	if p.IsEmpty() {
		return NewValidationError("body", "must contain at least one of title, content, tags")
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil
}

// NewPostID generates an opaque identifier for a new post.
func NewPostID() string {
	return uuid.NewString()
}

// Normalize replaces nil collections with empty ones so they encode as [] rather than null.
func (p *Post) Normalize() *Post {
	if p == nil {
		return nil
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	return p
}
