// Package model はドメインモデルを定義する。
package model

import "time"

// User は管理者アカウントを表す。
// Passwordには常にソルト付きハッシュを格納し、平文は保持しない。
type User struct {
	ID        string
	Username  string
	Password  string
	CreatedAt time.Time
}
