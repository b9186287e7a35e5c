package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/forumposts/models"
)

var _ PostRepository = (*GormPostRepository)(nil)

// postRecord is the relational row behind a post. Tags and comments live in
// child tables so they can be filtered and appended without rewriting the post.
type postRecord struct {
	ID          string          `gorm:"primaryKey;size:36"`
	Title       string          `gorm:"type:text;not null"`
	Content     string          `gorm:"type:text;not null"`
	Author      string          `gorm:"size:255;not null"`
	AuthorFold  string          `gorm:"size:255;index;not null"`
	DateCreated time.Time       `gorm:"index;not null"`
	Likes       int64           `gorm:"not null;default:0"`
	Tags        []tagRecord     `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Comments    []commentRecord `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (postRecord) TableName() string { return "posts" }

type tagRecord struct {
	ID     uint   `gorm:"primaryKey"`
	PostID string `gorm:"size:36;index;not null"`
	Name   string `gorm:"size:255;not null"`
	Fold   string `gorm:"size:255;index;not null"`
}

func (tagRecord) TableName() string { return "post_tags" }

type commentRecord struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    string `gorm:"size:36;index;not null"`
	User      string `gorm:"size:255;not null"`
	Message   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (commentRecord) TableName() string { return "post_comments" }

func (r *postRecord) toDomain() *models.Post {
	post := &models.Post{
		ID:          r.ID,
		Title:       r.Title,
		Content:     r.Content,
		Author:      r.Author,
		DateCreated: r.DateCreated.UTC(),
		Likes:       r.Likes,
		Tags:        make([]string, 0, len(r.Tags)),
		Comments:    make([]models.Comment, 0, len(r.Comments)),
	}
	for _, t := range r.Tags {
		post.Tags = append(post.Tags, t.Name)
	}
	for _, c := range r.Comments {
		post.Comments = append(post.Comments, models.Comment{User: c.User, Message: c.Message})
	}
	return post
}

func toTagRecords(postID string, tags []string) []tagRecord {
	records := make([]tagRecord, 0, len(tags))
	for _, name := range tags {
		records = append(records, tagRecord{PostID: postID, Name: name, Fold: fold(name)})
	}
	return records
}

// fold is the case-insensitive matching key for authors and tags. Folding is
// done here rather than with SQL LOWER, which SQLite applies to ASCII only.
func fold(s string) string {
	return strings.ToLower(s)
}

// AutoMigrate creates or extends the tables used by GormPostRepository.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&postRecord{}, &tagRecord{}, &commentRecord{})
}

// GormPostRepository implements PostRepository on a relational database through GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GormPostRepository
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	stored := prepareNew(post)
	rec := postRecord{
		ID:          stored.ID,
		Title:       stored.Title,
		Content:     stored.Content,
		Author:      stored.Author,
		AuthorFold:  fold(stored.Author),
		DateCreated: stored.DateCreated,
		Tags:        toTagRecords(stored.ID, stored.Tags),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return r.FindByID(ctx, stored.ID)
}

func (r *GormPostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	return load(r.db.WithContext(ctx), id, false)
}

func (r *GormPostRepository) DeleteByID(ctx context.Context, id string) (*models.Post, error) {
	var deleted *models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := load(tx, id, true)
		if err != nil || post == nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&tagRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&commentRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&postRecord{}).Error; err != nil {
			return err
		}
		deleted = post
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	return deleted, nil
}

func (r *GormPostRepository) IncrementLikes(ctx context.Context, id string) (*models.Post, error) {
	var updated *models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&postRecord{}).Where("id = ?", id).UpdateColumn("likes", gorm.Expr("likes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var err error
		updated, err = load(tx, id, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to increment likes: %w", err)
	}
	return updated, nil
}

func (r *GormPostRepository) AppendComment(ctx context.Context, id, user, message string) (*models.Post, error) {
	var updated *models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := lockPost(tx, id)
		if err != nil || !found {
			return err
		}
		if err := tx.Create(&commentRecord{PostID: id, User: user, Message: message}).Error; err != nil {
			return err
		}
		updated, err = load(tx, id, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append comment: %w", err)
	}
	return updated, nil
}

func (r *GormPostRepository) FindByAuthor(ctx context.Context, author string) ([]*models.Post, error) {
	posts, err := r.list(r.db.WithContext(ctx).Where("author_fold = ?", fold(author)))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by author: %w", err)
	}
	return posts, nil
}

func (r *GormPostRepository) FindByTags(ctx context.Context, tags string) ([]*models.Post, error) {
	labels := models.ParseTagList(tags)
	if len(labels) == 0 {
		return []*models.Post{}, nil
	}
	for i, l := range labels {
		labels[i] = fold(l)
	}

	db := r.db.WithContext(ctx)
	tagged := db.Model(&tagRecord{}).Select("post_id").Where("fold IN ?", labels)
	posts, err := r.list(db.Where("id IN (?)", tagged))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by tags: %w", err)
	}
	return posts, nil
}

func (r *GormPostRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]*models.Post, error) {
	// An exclusive upper bound at the next midnight covers the whole last day
	// regardless of the column's fractional-second precision.
	posts, err := r.list(r.db.WithContext(ctx).
		Where("date_created >= ? AND date_created < ?", models.DayStart(from), models.DayStart(to).AddDate(0, 0, 1)))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by period: %w", err)
	}
	return posts, nil
}

func (r *GormPostRepository) Update(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	var updated *models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := lockPost(tx, id)
		if err != nil || !found {
			return err
		}

		fields := map[string]interface{}{}
		if patch.Title != nil {
			fields["title"] = *patch.Title
		}
		if patch.Content != nil {
			fields["content"] = *patch.Content
		}
		if len(fields) > 0 {
			if err := tx.Model(&postRecord{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}

		// Tags are replaced as a whole, keeping the order given by the caller.
		if patch.Tags != nil {
			if err := tx.Where("post_id = ?", id).Delete(&tagRecord{}).Error; err != nil {
				return err
			}
			if records := toTagRecords(id, *patch.Tags); len(records) > 0 {
				if err := tx.Create(&records).Error; err != nil {
					return err
				}
			}
		}

		updated, err = load(tx, id, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return updated, nil
}

func (r *GormPostRepository) list(query *gorm.DB) ([]*models.Post, error) {
	var records []postRecord
	err := withChildren(query).Order("date_created ASC").Order("id ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	posts := make([]*models.Post, 0, len(records))
	for i := range records {
		posts = append(posts, records[i].toDomain())
	}
	return posts, nil
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

// load fetches one post with its tags and comments, returning nil when it does not exist.
func load(db *gorm.DB, id string, forUpdate bool) (*models.Post, error) {
	query := withChildren(db)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rec postRecord
	if err := query.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

// lockPost takes a row lock on the post so concurrent writers serialize on it.
func lockPost(tx *gorm.DB, id string) (bool, error) {
	var rec postRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
