package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cppla/forumposts/models"
	"github.com/cppla/forumposts/repositories"
)

var _ repositories.PostRepository = (*PostRepository)(nil)

// PostRepository is an in-memory PostRepository. A single mutex serializes
// writers, which gives the same no-lost-update guarantee as the real stores.
type PostRepository struct {
	posts map[string]*models.Post
	mutex sync.RWMutex

	// Err, when set, is returned by every method to simulate a store failure.
	Err error
}

func NewPostRepository() *PostRepository {
	return &PostRepository{
		posts: make(map[string]*models.Post),
	}
}

func (m *PostRepository) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.posts = make(map[string]*models.Post)
}

// Seed stores post as-is, keeping its id, dateCreated, likes and comments.
func (m *PostRepository) Seed(post *models.Post) *models.Post {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if post.ID == "" {
		post.ID = models.NewPostID()
	}
	m.posts[post.ID] = clonePost(post.Normalize())
	return clonePost(post)
}

func (m *PostRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := &models.Post{
		ID:          models.NewPostID(),
		Title:       post.Title,
		Content:     post.Content,
		Author:      post.Author,
		DateCreated: post.DateCreated,
		Tags:        append([]string{}, post.Tags...),
		Comments:    []models.Comment{},
	}
	if stored.DateCreated.IsZero() {
		stored.DateCreated = time.Now().UTC().Truncate(time.Millisecond)
	}
	m.posts[stored.ID] = stored
	return clonePost(stored), nil
}

func (m *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return clonePost(m.posts[id]), nil
}

func (m *PostRepository) DeleteByID(ctx context.Context, id string) (*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	post, exists := m.posts[id]
	if !exists {
		return nil, nil
	}
	delete(m.posts, id)
	return clonePost(post), nil
}

func (m *PostRepository) IncrementLikes(ctx context.Context, id string) (*models.Post, error) {
	return m.mutate(id, func(p *models.Post) { p.Likes++ })
}

func (m *PostRepository) AppendComment(ctx context.Context, id, user, message string) (*models.Post, error) {
	return m.mutate(id, func(p *models.Post) {
		p.Comments = append(p.Comments, models.Comment{User: user, Message: message})
	})
}

func (m *PostRepository) Update(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	return m.mutate(id, func(p *models.Post) {
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Content != nil {
			p.Content = *patch.Content
		}
		if patch.Tags != nil {
			p.Tags = append([]string{}, (*patch.Tags)...)
		}
	})
}

func (m *PostRepository) FindByAuthor(ctx context.Context, author string) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool {
		return strings.EqualFold(p.Author, author)
	})
}

func (m *PostRepository) FindByTags(ctx context.Context, tags string) ([]*models.Post, error) {
	labels := models.ParseTagList(tags)
	return m.filter(func(p *models.Post) bool {
		for _, have := range p.Tags {
			for _, want := range labels {
				if strings.EqualFold(have, want) {
					return true
				}
			}
		}
		return false
	})
}

func (m *PostRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]*models.Post, error) {
	start, end := models.DayStart(from), models.DayEnd(to)
	return m.filter(func(p *models.Post) bool {
		return !p.DateCreated.Before(start) && !p.DateCreated.After(end)
	})
}

func (m *PostRepository) mutate(id string, fn func(*models.Post)) (*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	post, exists := m.posts[id]
	if !exists {
		return nil, nil
	}
	fn(post)
	return clonePost(post), nil
}

func (m *PostRepository) filter(match func(*models.Post) bool) ([]*models.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	posts := []*models.Post{}
	for _, p := range m.posts {
		if match(p) {
			posts = append(posts, clonePost(p))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].DateCreated.Equal(posts[j].DateCreated) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].DateCreated.Before(posts[j].DateCreated)
	})
	return posts, nil
}

func clonePost(p *models.Post) *models.Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string{}, p.Tags...)
	c.Comments = append([]models.Comment{}, p.Comments...)
	return &c
}
