package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoRepos_ImplementInterfaces(t *testing.T) {
	var _ PostRepository = (*MongoPostRepo)(nil)
	var _ UserRepository = (*MongoUserRepo)(nil)
}

func TestMongoPost_ToModel(t *testing.T) {
	oid := primitive.NewObjectID()
	now := time.Now().UTC()
	doc := &mongoPost{ID: oid, Title: "T", Body: "B", CreatedAt: now, UpdatedAt: now}

	got := doc.toModel()
	if got.ID != oid.Hex() {
		t.Errorf("ID = %q, want %q", got.ID, oid.Hex())
	}
	if got.Title != "T" || got.Body != "B" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Errorf("timestamps not preserved: %+v", got)
	}
}

// 不正な形式のIDはコレクションに問い合わせずに「見つからない」として扱う
func TestMongoPostRepo_MalformedID_IsTreatedAsMissing(t *testing.T) {
	repo := &MongoPostRepo{}
	ctx := context.Background()

	post, err := repo.FindByID(ctx, "123")
	if err != nil || post != nil {
		t.Errorf("FindByID = %+v, %v; want nil, nil", post, err)
	}
	if err := repo.Update(ctx, &model.Post{ID: "zz"}); err != nil {
		t.Errorf("Update error = %v, want nil", err)
	}
	if err := repo.Delete(ctx, "zz"); err != nil {
		t.Errorf("Delete error = %v, want nil", err)
	}
}
