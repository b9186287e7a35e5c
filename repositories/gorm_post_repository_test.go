package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/forumposts/models"
)

func newTestRepository(t *testing.T) *GormPostRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return NewGormPostRepository(db)
}

func createPost(t *testing.T, repo PostRepository, post models.Post) *models.Post {
	t.Helper()
	created, err := repo.Create(context.Background(), &post)
	require.NoError(t, err)
	require.NotNil(t, created)
	return created
}

func TestGormCreateAssignsServerFields(t *testing.T) {
	repo := newTestRepository(t)
	before := time.Now().Add(-time.Second)

	created := createPost(t, repo, models.Post{
		Title:   "Hello",
		Content: "World",
		Author:  "ann",
		Tags:    []string{"go", "db"},
		Likes:   42,
	})

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Hello", created.Title)
	assert.Equal(t, "ann", created.Author)
	assert.Equal(t, []string{"go", "db"}, created.Tags)
	assert.Equal(t, int64(0), created.Likes)
	assert.NotNil(t, created.Comments)
	assert.Empty(t, created.Comments)
	assert.True(t, created.DateCreated.After(before))
	assert.Equal(t, time.UTC, created.DateCreated.Location())

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func TestGormCreateWithoutTags(t *testing.T) {
	repo := newTestRepository(t)

	created := createPost(t, repo, models.Post{Title: "t", Content: "c", Author: "a"})
	assert.NotNil(t, created.Tags)
	assert.Empty(t, created.Tags)
}

func TestGormFindByIDMissing(t *testing.T) {
	repo := newTestRepository(t)

	post, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, post)
}

func TestGormIncrementLikes(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := createPost(t, repo, models.Post{Title: "t", Content: "c", Author: "a"})

	_, err := repo.IncrementLikes(ctx, created.ID)
	require.NoError(t, err)
	updated, err := repo.IncrementLikes(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Likes)

	missing, err := repo.IncrementLikes(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormConcurrentLikesAreNotLost(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := createPost(t, repo, models.Post{Title: "t", Content: "c", Author: "a"})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementLikes(ctx, created.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), found.Likes)
}

func TestGormAppendCommentKeepsOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := createPost(t, repo, models.Post{Title: "t", Content: "c", Author: "a"})

	_, err := repo.AppendComment(ctx, created.ID, "bob", "first")
	require.NoError(t, err)
	updated, err := repo.AppendComment(ctx, created.ID, "carol", "second")
	require.NoError(t, err)

	assert.Equal(t, []models.Comment{
		{User: "bob", Message: "first"},
		{User: "carol", Message: "second"},
	}, updated.Comments)

	missing, err := repo.AppendComment(ctx, "nope", "bob", "hi")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormFindByAuthorIgnoresCase(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createPost(t, repo, models.Post{Title: "1", Content: "c", Author: "Ann"})
	createPost(t, repo, models.Post{Title: "2", Content: "c", Author: "Annabelle"})
	createPost(t, repo, models.Post{Title: "3", Content: "c", Author: "bob"})

	for _, q := range []string{"ann", "ANN", "Ann"} {
		posts, err := repo.FindByAuthor(ctx, q)
		require.NoError(t, err)
		require.Len(t, posts, 1, q)
		assert.Equal(t, "Ann", posts[0].Author)
	}

	posts, err := repo.FindByAuthor(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestGormFindByTagsIsUnion(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	day := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)
	p1 := createPost(t, repo, models.Post{Title: "1", Content: "c", Author: "a", Tags: []string{"go", "db"}, DateCreated: day})
	p2 := createPost(t, repo, models.Post{Title: "2", Content: "c", Author: "a", Tags: []string{"Web"}, DateCreated: day.Add(time.Hour)})
	createPost(t, repo, models.Post{Title: "3", Content: "c", Author: "a", Tags: []string{"misc"}, DateCreated: day.Add(2 * time.Hour)})

	posts, err := repo.FindByTags(ctx, "GO,web,absent")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, p1.ID, posts[0].ID)
	assert.Equal(t, p2.ID, posts[1].ID)

	// A post matching several labels is returned once.
	posts, err = repo.FindByTags(ctx, "go,db")
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	posts, err = repo.FindByTags(ctx, " , ")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestGormCaseFoldingCoversNonASCII(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	zoe := createPost(t, repo, models.Post{Title: "1", Content: "c", Author: "Zoë", Tags: []string{"Äpfel"}})
	createPost(t, repo, models.Post{Title: "2", Content: "c", Author: "Zoe", Tags: []string{"Apfel"}})

	for _, q := range []string{"Zoë", "ZOË", "zoë"} {
		posts, err := repo.FindByAuthor(ctx, q)
		require.NoError(t, err)
		require.Len(t, posts, 1, q)
		assert.Equal(t, zoe.ID, posts[0].ID)
	}

	for _, q := range []string{"Äpfel", "äPFEL", "ÄPFEL"} {
		posts, err := repo.FindByTags(ctx, q)
		require.NoError(t, err)
		require.Len(t, posts, 1, q)
		assert.Equal(t, zoe.ID, posts[0].ID)
		assert.Equal(t, []string{"Äpfel"}, posts[0].Tags)
	}

	// Replaced tags are matched the same way.
	tags := []string{"Öl"}
	_, err := repo.Update(ctx, zoe.ID, models.PostPatch{Tags: &tags})
	require.NoError(t, err)
	posts, err := repo.FindByTags(ctx, "öl")
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestGormConcurrentCommentsAreNotLost(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := createPost(t, repo, models.Post{Title: "t", Content: "c", Author: "a"})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.AppendComment(ctx, created.ID, fmt.Sprintf("user%d", i), "hi")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, found.Comments, n)

	seen := map[string]bool{}
	for _, c := range found.Comments {
		seen[c.User] = true
	}
	assert.Len(t, seen, n)
}

func TestGormFindByDateRangeIsInclusiveOfWholeDays(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	early := createPost(t, repo, models.Post{Title: "early", Content: "c", Author: "a",
		DateCreated: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})
	late := createPost(t, repo, models.Post{Title: "late", Content: "c", Author: "a",
		DateCreated: time.Date(2020, 12, 31, 23, 59, 59, 999_000_000, time.UTC)})
	createPost(t, repo, models.Post{Title: "after", Content: "c", Author: "a",
		DateCreated: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)})
	createPost(t, repo, models.Post{Title: "before", Content: "c", Author: "a",
		DateCreated: time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC)})

	posts, err := repo.FindByDateRange(ctx,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, early.ID, posts[0].ID)
	assert.Equal(t, late.ID, posts[1].ID)
}

func TestGormUpdateIsPartial(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := createPost(t, repo, models.Post{Title: "old", Content: "body", Author: "a", Tags: []string{"x"}})
	_, err := repo.IncrementLikes(ctx, created.ID)
	require.NoError(t, err)

	title := "new"
	updated, err := repo.Update(ctx, created.ID, models.PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "body", updated.Content)
	assert.Equal(t, []string{"x"}, updated.Tags)
	assert.Equal(t, int64(1), updated.Likes)
	assert.True(t, created.DateCreated.Equal(updated.DateCreated))

	tags := []string{"b", "a"}
	updated, err = repo.Update(ctx, created.ID, models.PostPatch{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, updated.Tags)
	assert.Equal(t, "new", updated.Title)

	missing, err := repo.Update(ctx, "nope", models.PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormDeleteReturnsPost(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := createPost(t, repo, models.Post{Title: "t", Content: "c", Author: "a", Tags: []string{"x"}})
	_, err := repo.AppendComment(ctx, created.ID, "bob", "hi")
	require.NoError(t, err)

	deleted, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Len(t, deleted.Comments, 1)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	again, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}
