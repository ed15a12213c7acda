package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/blogman/internal/model"
)

// postColumns はpostsテーブルのSELECT対象カラム。scanPostの順序と一致させること。
const postColumns = `id, title, body, created_at, updated_at`

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// List はcreated_at降順で[offset, offset+limit)の範囲の記事を返す。
func (r *PostgresPostRepo) List(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 ORDER BY created_at DESC, id DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Count は記事の総数を返す。
func (r *PostgresPostRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// FindByID は指定IDの記事を取得する。
// UUIDとして解釈できないIDはDBに問い合わせずnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	key, ok := canonicalID(id)
	if !ok {
		return nil, nil
	}

	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		key,
	).Scan(&post.ID, &post.Title, &post.Body, &post.CreatedAt, &post.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	return post, nil
}

// Search はタイトルまたは本文にtermを含む記事をILIKEで検索する。
// LIKEのメタ文字はエスケープするため、termはリテラルとして扱われる。
func (r *PostgresPostRepo) Search(ctx context.Context, term string) ([]*model.Post, error) {
	pattern := "%" + escapeLike(term) + "%"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE title ILIKE $1 OR body ILIKE $1
		 ORDER BY created_at DESC, id DESC`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListAll は全記事をcreated_at降順で返す。
func (r *PostgresPostRepo) ListAll(ctx context.Context) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list all posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Create は記事を作成する。IDが未設定の場合はUUIDを採番する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.Title, post.Body, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// Update はタイトル、本文、updated_atを更新する。
// 対象が存在しない場合（IDの形式不正を含む）は何もしない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	key, ok := canonicalID(post.ID)
	if !ok {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = $2, body = $3, updated_at = $4 WHERE id = $1`,
		key, post.Title, post.Body, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete は指定IDの記事を削除する。存在しない場合もエラーにしない。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	key, ok := canonicalID(id)
	if !ok {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, key); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// scanPosts は記事の結果セットを読み出す。
func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	posts := make([]*model.Post, 0)
	for rows.Next() {
		post := &model.Post{}
		if err := rows.Scan(&post.ID, &post.Title, &post.Body, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)

// canonicalID はIDをUUIDとして解釈し、ハイフン区切りの標準形を返す。
// urn:uuid: や波括弧付きの表記も標準形に揃える。
func canonicalID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
