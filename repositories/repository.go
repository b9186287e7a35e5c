package repositories

import (
	"context"
	"time"

	"github.com/cppla/forumposts/models"
)

// PostRepository translates post operations into store queries.
//
// Single-document methods return (nil, nil) when no post matches; deciding
// whether that is an error is left to the caller. List methods return an
// empty, non-nil slice when nothing matches.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	DeleteByID(ctx context.Context, id string) (*models.Post, error)
	IncrementLikes(ctx context.Context, id string) (*models.Post, error)
	AppendComment(ctx context.Context, id, user, message string) (*models.Post, error)
	FindByAuthor(ctx context.Context, author string) ([]*models.Post, error)
	FindByTags(ctx context.Context, tags string) ([]*models.Post, error)
	FindByDateRange(ctx context.Context, from, to time.Time) ([]*models.Post, error)
	Update(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error)
}

// prepareNew fills the server-assigned fields of a post about to be stored.
func prepareNew(post *models.Post) *models.Post {
	stored := *post
	if stored.ID == "" {
		stored.ID = models.NewPostID()
	}
	if stored.DateCreated.IsZero() {
		stored.DateCreated = time.Now()
	}
	// Millisecond precision is what every supported store keeps.
	stored.DateCreated = stored.DateCreated.UTC().Truncate(time.Millisecond)
	stored.Likes = 0
	stored.Tags = append([]string{}, post.Tags...)
	stored.Comments = []models.Comment{}
	return &stored
}
