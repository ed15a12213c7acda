// Package model はドメインモデルを定義する。
package model

import "time"

// Post はブログ記事を表す。
// CreatedAtは作成時に設定され以後変更されない。UpdatedAtは編集のたびに更新される。
type Post struct {
	ID        string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostInput は記事の作成・更新時に受け付ける入力値。
// 更新対象はタイトルと本文のみ。
type PostInput struct {
	Title string
	Body  string
}

// Validate は必須項目（タイトル・本文）が空でないことを検証する。
func (in PostInput) Validate() error {
	if in.Title == "" {
		return NewValidationError("title is required")
	}
	if in.Body == "" {
		return NewValidationError("body is required")
	}
	return nil
}

// PostPatch は記事の部分更新の入力値。nilのフィールドは既存の値を保持する。
type PostPatch struct {
	Title *string
	Body  *string
}

// Apply はpatchで指定されたフィールドをinに上書きした値を返す。
func (p PostPatch) Apply(in PostInput) PostInput {
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Body != nil {
		in.Body = *p.Body
	}
	return in
}
