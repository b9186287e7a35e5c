package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cppla/forumposts/models"
)

var _ PostRepository = (*MongoPostRepository)(nil)

type postDocument struct {
	ID          string            `bson:"_id"`
	Title       string            `bson:"title"`
	Content     string            `bson:"content"`
	Author      string            `bson:"author"`
	DateCreated time.Time         `bson:"dateCreated"`
	Tags        []string          `bson:"tags"`
	Likes       int64             `bson:"likes"`
	Comments    []commentDocument `bson:"comments"`
}

type commentDocument struct {
	User    string `bson:"user"`
	Message string `bson:"message"`
}

func fromDomain(p *models.Post) postDocument {
	doc := postDocument{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Author:      p.Author,
		DateCreated: p.DateCreated,
		Likes:       p.Likes,
		Tags:        append([]string{}, p.Tags...),
		Comments:    make([]commentDocument, 0, len(p.Comments)),
	}
	for _, c := range p.Comments {
		doc.Comments = append(doc.Comments, commentDocument{User: c.User, Message: c.Message})
	}
	return doc
}

func (d *postDocument) toDomain() *models.Post {
	post := &models.Post{
		ID:          d.ID,
		Title:       d.Title,
		Content:     d.Content,
		Author:      d.Author,
		DateCreated: d.DateCreated.UTC(),
		Likes:       d.Likes,
		Tags:        append([]string{}, d.Tags...),
		Comments:    make([]models.Comment, 0, len(d.Comments)),
	}
	for _, c := range d.Comments {
		post.Comments = append(post.Comments, models.Comment{User: c.User, Message: c.Message})
	}
	return post
}

// MongoPostRepository implements PostRepository on a MongoDB collection.
// Likes and comments are changed with single-document update operators, so
// concurrent callers never lose each other's writes.
type MongoPostRepository struct {
	coll *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(coll *mongo.Collection) *MongoPostRepository {
	return &MongoPostRepository{coll: coll}
}

// EnsureIndexes creates the secondary indexes used by the filter queries.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "dateCreated", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	return nil
}

func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	doc := fromDomain(prepareNew(post))
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MongoPostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := decodeOne(r.coll.FindOne(ctx, byID(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return post, nil
}

func (r *MongoPostRepository) DeleteByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := decodeOne(r.coll.FindOneAndDelete(ctx, byID(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	return post, nil
}

func (r *MongoPostRepository) IncrementLikes(ctx context.Context, id string) (*models.Post, error) {
	post, err := r.findOneAndUpdate(ctx, id, bson.M{"$inc": bson.M{"likes": 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to increment likes: %w", err)
	}
	return post, nil
}

func (r *MongoPostRepository) AppendComment(ctx context.Context, id, user, message string) (*models.Post, error) {
	update := bson.M{"$push": bson.M{"comments": commentDocument{User: user, Message: message}}}
	post, err := r.findOneAndUpdate(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to append comment: %w", err)
	}
	return post, nil
}

func (r *MongoPostRepository) FindByAuthor(ctx context.Context, author string) ([]*models.Post, error) {
	posts, err := r.find(ctx, authorFilter(author))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by author: %w", err)
	}
	return posts, nil
}

func (r *MongoPostRepository) FindByTags(ctx context.Context, tags string) ([]*models.Post, error) {
	labels := models.ParseTagList(tags)
	if len(labels) == 0 {
		return []*models.Post{}, nil
	}
	posts, err := r.find(ctx, tagsFilter(labels))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by tags: %w", err)
	}
	return posts, nil
}

func (r *MongoPostRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]*models.Post, error) {
	posts, err := r.find(ctx, periodFilter(from, to))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by period: %w", err)
	}
	return posts, nil
}

func (r *MongoPostRepository) Update(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error) {
	update := patchUpdate(patch)
	if update == nil {
		return r.FindByID(ctx, id)
	}
	post, err := r.findOneAndUpdate(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

func (r *MongoPostRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(r.coll.FindOneAndUpdate(ctx, byID(id), update, opts))
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dateCreated", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	posts := []*models.Post{}
	for cur.Next(ctx) {
		var doc postDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		posts = append(posts, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// decodeOne maps "no document" to a nil post.
func decodeOne(res *mongo.SingleResult) (*models.Post, error) {
	var doc postDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func byID(id string) bson.M {
	return bson.M{"_id": id}
}

// exactFold matches s exactly, ignoring case. The input is quoted so that
// regex metacharacters in author names or tags match literally.
func exactFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}

func authorFilter(author string) bson.M {
	return bson.M{"author": exactFold(author)}
}

func tagsFilter(labels []string) bson.M {
	patterns := make(bson.A, 0, len(labels))
	for _, l := range labels {
		patterns = append(patterns, exactFold(l))
	}
	return bson.M{"tags": bson.M{"$in": patterns}}
}

func periodFilter(from, to time.Time) bson.M {
	return bson.M{"dateCreated": bson.M{
		"$gte": models.DayStart(from),
		"$lte": models.DayEnd(to),
	}}
}

// patchUpdate builds a $set document from the fields present in patch, or nil if there are none.
func patchUpdate(patch models.PostPatch) bson.M {
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Tags != nil {
		set["tags"] = append([]string{}, (*patch.Tags)...)
	}
	if len(set) == 0 {
		return nil
	}
	return bson.M{"$set": set}
}
