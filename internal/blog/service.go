// Package blog はブログ記事と管理者ユーザーのドメインロジックを提供する。
package blog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// Sanitizer は保存前に記事本文を無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// PageResult はホームフィードの1ページ分の結果。
type PageResult struct {
	Posts       []*model.Post
	Page        int
	NextPage    int
	HasNextPage bool
	Total       int
}

// Service は記事とユーザーのサービス層。
// リポジトリの単純なCRUDにページング、検証、本文のサニタイズ、更新日時の管理を加える。
type Service struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(posts repository.PostRepository, users repository.UserRepository, sanitizer Sanitizer) *Service {
	return &Service{
		posts:     posts,
		users:     users,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// ListPage はcreatedAt降順でpage番目（1始まり）のperPage件を返す。
// page < 1 は1として扱う。次ページは page*perPage < 総件数 の場合にのみ存在する。
func (s *Service) ListPage(ctx context.Context, perPage, page int) (*PageResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if limit := math.MaxInt / perPage; page > limit {
		page = limit
	}

	posts, err := s.posts.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, s.storeFailure("list posts", err)
	}

	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, s.storeFailure("count posts", err)
	}

	return &PageResult{
		Posts:       posts,
		Page:        page,
		NextPage:    page + 1,
		HasNextPage: page*perPage < total,
		Total:       total,
	}, nil
}

// GetByID は指定IDの記事を返す。存在しない場合や形式不正のIDではnilを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeFailure("find post", err)
	}
	return post, nil
}

// Search はタイトルまたは本文にtermを含む記事を返す。
// 呼び出し側でStripSearchTermを適用しておくこと。空文字列は全件に一致する。
func (s *Service) Search(ctx context.Context, term string) ([]*model.Post, error) {
	posts, err := s.posts.Search(ctx, term)
	if err != nil {
		return nil, s.storeFailure("search posts", err)
	}
	return posts, nil
}

// CreateUser は管理者ユーザーを作成する。passwordHashはハッシュ済みの値を渡すこと。
// いずれかが空の場合はmodel.ErrValidation、ユーザー名重複時はmodel.ErrDuplicateを返す。
func (s *Service) CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	if username == "" {
		return nil, model.NewValidationError("username is required")
	}
	if passwordHash == "" {
		return nil, model.NewValidationError("password is required")
	}

	user := &model.User{
		Username:  username,
		Password:  passwordHash,
		CreatedAt: s.timestamp(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindUserByUsername はユーザー名でユーザーを返す。存在しない場合はnilを返す。
func (s *Service) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, s.storeFailure("find user", err)
	}
	return user, nil
}

// ListAllPosts は全記事をcreatedAt降順で返す。
func (s *Service) ListAllPosts(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.posts.ListAll(ctx)
	if err != nil {
		return nil, s.storeFailure("list all posts", err)
	}
	return posts, nil
}

// CreatePost は記事を作成する。createdAtとupdatedAtには同じ現在時刻を設定する。
// タイトルまたはサニタイズ後の本文が空の場合はmodel.ErrValidationを返す。
func (s *Service) CreatePost(ctx context.Context, in model.PostInput) error {
	in = s.clean(in)
	if err := in.Validate(); err != nil {
		return err
	}

	now := s.timestamp()
	post := &model.Post{
		Title:     in.Title,
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return s.storeFailure("create post", err)
	}

	slog.Info("post created", slog.String("post_id", post.ID))
	return nil
}

// UpdatePost は記事のタイトルと本文を更新し、updatedAtを進める。
// patchで省略されたフィールドは既存の値を保持する。
// 対象が存在しない場合は何もせずnilを返す。
// updatedAtは常に直前の値より後になる。
func (s *Service) UpdatePost(ctx context.Context, id string, patch model.PostPatch) error {
	existing, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return s.storeFailure("find post", err)
	}
	if existing == nil {
		return nil
	}

	in := patch.Apply(model.PostInput{Title: existing.Title, Body: existing.Body})
	if patch.Body != nil {
		in = s.clean(in)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	updatedAt := s.timestamp()
	if !updatedAt.After(existing.UpdatedAt) {
		updatedAt = existing.UpdatedAt.Add(time.Millisecond)
	}

	existing.Title = in.Title
	existing.Body = in.Body
	existing.UpdatedAt = updatedAt
	if err := s.posts.Update(ctx, existing); err != nil {
		return s.storeFailure("update post", err)
	}
	return nil
}

// DeletePost は記事を削除する。対象が存在しない場合もnilを返す。
func (s *Service) DeletePost(ctx context.Context, id string) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return s.storeFailure("delete post", err)
	}
	return nil
}

// clean は本文をサニタイズする。
func (s *Service) clean(in model.PostInput) model.PostInput {
	if s.sanitizer != nil {
		in.Body = s.sanitizer.Sanitize(in.Body)
	}
	return in
}

// timestamp はミリ秒精度に丸めたUTCの現在時刻を返す。
// MongoDBの日時はミリ秒精度のため、両ストアで同じ値を保持できる。
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) storeFailure(op string, err error) error {
	slog.Error("store operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("failed to %s: %w", op, err)
}

// nonAlphanumeric は検索語から除去する文字。
var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// StripSearchTerm は英数字以外の文字をすべて取り除く。
func StripSearchTerm(term string) string {
	return nonAlphanumeric.ReplaceAllString(term, "")
}

// maxPage はParsePageが返すページ番号の上限。
const maxPage = 1 << 20

// ParsePage はクエリ文字列のページ番号を解釈する。未指定、数値以外、1未満は1を返す。
// maxPageを超える値はmaxPageに丸める。
func ParsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return min(page, maxPage)
}
