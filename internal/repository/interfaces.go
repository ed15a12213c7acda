// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/blogman/internal/model"
)

// PostRepository はブログ記事の永続化インターフェース。
// 単一ドキュメント単位の原子性はストア側に委ね、アプリケーション側での排他制御は行わない。
type PostRepository interface {
	// List はcreated_at降順で[offset, offset+limit)の範囲の記事を返す。
	List(ctx context.Context, offset, limit int) ([]*model.Post, error)

	// Count は記事の総数を返す。
	Count(ctx context.Context) (int, error)

	// FindByID は指定IDの記事を取得する。
	// 見つからない場合、またはIDの形式が不正な場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Search はタイトルまたは本文にtermを含む記事を大文字小文字を区別せずに検索する。
	// termが空の場合は全件に一致する。
	Search(ctx context.Context, term string) ([]*model.Post, error)

	// ListAll は全記事をcreated_at降順で返す。
	ListAll(ctx context.Context) ([]*model.Post, error)

	// Create は記事を作成し、採番したIDをpost.IDに設定する。
	Create(ctx context.Context, post *model.Post) error

	// Update はタイトル、本文、updated_atを更新する。
	// 該当する記事が存在しない場合は何もせずnilを返す。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの記事を削除する。存在しない場合もnilを返す。
	Delete(ctx context.Context, id string) error
}

// UserRepository は管理者ユーザーの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番したIDをuser.IDに設定する。
	// usernameが既に存在する場合はmodel.ErrDuplicateをラップしたエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}
