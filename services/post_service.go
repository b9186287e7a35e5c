package services

import (
	"context"
	"fmt"

	"github.com/cppla/forumposts/models"
	"github.com/cppla/forumposts/repositories"
)

// PostService holds the business rules for posts: it turns missing posts
// into NotFoundError and keeps the author out of the caller's control.
// It is stateless and safe for concurrent use.
type PostService struct {
	repo repositories.PostRepository
}

// NewPostService creates a new PostService
func NewPostService(repo repositories.PostRepository) *PostService {
	return &PostService{repo: repo}
}

// CreatePost stores a new post written by author. Any author carried by the
// request body is never consulted.
func (s *PostService) CreatePost(ctx context.Context, author string, input models.NewPost) (*models.Post, error) {
	post := &models.Post{
		Title:   input.Title,
		Content: input.Content,
		Author:  author,
		Tags:    append([]string{}, input.Tags...),
	}
	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return created.Normalize(), nil
}

func (s *PostService) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	return single(post, err, id, "get post")
}

// DeletePost removes the post and returns it as it was.
func (s *PostService) DeletePost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repo.DeleteByID(ctx, id)
	return single(post, err, id, "delete post")
}

func (s *PostService) AddLike(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repo.IncrementLikes(ctx, id)
	return single(post, err, id, "add like")
}

func (s *PostService) AddComment(ctx context.Context, id, user, message string) (*models.Post, error) {
	post, err := s.repo.AppendComment(ctx, id, user, message)
	return single(post, err, id, "add comment")
}

func (s *PostService) GetPostsByAuthor(ctx context.Context, author string) ([]*models.Post, error) {
	posts, err := s.repo.FindByAuthor(ctx, author)
	return list(posts, err, "get posts by author")
}

// GetPostsByTags returns posts carrying any of the comma separated tags.
func (s *PostService) GetPostsByTags(ctx context.Context, tags string) ([]*models.Post, error) {
	posts, err := s.repo.FindByTags(ctx, tags)
	return list(posts, err, "get posts by tags")
}

// GetPostsByPeriod returns posts created on any day from dateFrom to dateTo inclusive.
func (s *PostService) GetPostsByPeriod(ctx context.Context, dateFrom, dateTo string) ([]*models.Post, error) {
	period, err := models.ParsePeriod(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	posts, err := s.repo.FindByDateRange(ctx, period.From, period.To)
	return list(posts, err, "get posts by period")
}

// UpdatePost applies the fields present in patch and leaves the rest untouched.
func (s *PostService) UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	post, err := s.repo.Update(ctx, id, patch)
	return single(post, err, id, "update post")
}

func single(post *models.Post, err error, id, op string) (*models.Post, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if post == nil {
		return nil, notFound(id, op)
	}
	return post.Normalize(), nil
}

func list(posts []*models.Post, err error, op string) ([]*models.Post, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	for _, p := range posts {
		p.Normalize()
	}
	return posts, nil
}
