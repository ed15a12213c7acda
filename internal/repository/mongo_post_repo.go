package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoPost はpostsコレクションのドキュメント表現。
type mongoPost struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *mongoPost) toModel() *model.Post {
	return &model.Post{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// newestFirst はcreatedAt降順のソート条件。
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// MongoPostRepo はMongoDBを使用した記事リポジトリ。
type MongoPostRepo struct {
	coll *mongo.Collection
}

// NewMongoPostRepo はMongoPostRepoを生成する。
func NewMongoPostRepo(db *mongo.Database) *MongoPostRepo {
	return &MongoPostRepo{coll: db.Collection(database.PostsCollection)}
}

// List はcreatedAt降順で[offset, offset+limit)の範囲の記事を返す。
func (r *MongoPostRepo) List(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	posts, err := r.find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// Count は記事の総数を返す。
func (r *MongoPostRepo) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return int(n), nil
}

// FindByID は指定IDの記事を取得する。
// ObjectIDとして解釈できないIDは問い合わせずnilを返す。
func (r *MongoPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc mongoPost
	err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	return doc.toModel(), nil
}

// Search はタイトルまたは本文にtermを含む記事を大文字小文字を区別せずに検索する。
func (r *MongoPostRepo) Search(ctx context.Context, term string) ([]*model.Post, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: pattern}},
		bson.D{{Key: "body", Value: pattern}},
	}}}

	posts, err := r.find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return posts, nil
}

// ListAll は全記事をcreatedAt降順で返す。
func (r *MongoPostRepo) ListAll(ctx context.Context) ([]*model.Post, error) {
	posts, err := r.find(ctx, bson.D{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to list all posts: %w", err)
	}
	return posts, nil
}

// Create は記事を作成し、採番されたObjectIDをpost.IDに設定する。
func (r *MongoPostRepo) Create(ctx context.Context, post *model.Post) error {
	doc := mongoPost{
		ID:        primitive.NewObjectID(),
		Title:     post.Title,
		Body:      post.Body,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	post.ID = doc.ID.Hex()
	return nil
}

// Update はタイトル、本文、updatedAtを更新する。対象が存在しない場合は何もしない。
func (r *MongoPostRepo) Update(ctx context.Context, post *model.Post) error {
	oid, err := primitive.ObjectIDFromHex(post.ID)
	if err != nil {
		return nil
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: post.Title},
		{Key: "body", Value: post.Body},
		{Key: "updatedAt", Value: post.UpdatedAt},
	}}}
	if _, err := r.coll.UpdateByID(ctx, oid, update); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete は指定IDの記事を削除する。存在しない場合もエラーにしない。
func (r *MongoPostRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	if _, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}}); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (r *MongoPostRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*model.Post, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	posts := make([]*model.Post, 0)
	for cur.Next(ctx) {
		var doc mongoPost
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode post: %w", err)
		}
		posts = append(posts, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*MongoPostRepo)(nil)
