// Package auth は管理者のパスワード認証とセッショントークンを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/blogman/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials はユーザー不在とパスワード不一致を区別せずに表す。
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore は認証に必要なユーザー操作。blog.Serviceが満たす。
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
}

// Service はログインと登録のフローを提供する。
type Service struct {
	users  UserStore
	tokens TokenService
	cost   int

	// dummyHash はユーザーが存在しない場合にも比較処理を行い、応答時間を揃えるためのハッシュ。
	dummyHash []byte
}

// NewService はServiceを生成する。costはbcryptのコスト。
func NewService(users UserStore, tokens TokenService, cost int) *Service {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("blogman-dummy-password"), cost)
	return &Service{
		users:     users,
		tokens:    tokens,
		cost:      cost,
		dummyHash: dummy,
	}
}

// HashPassword はパスワードのbcryptハッシュを返す。
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login はユーザー名とパスワードを検証し、ユーザーIDを埋め込んだトークンを返す。
// ユーザーが存在しない場合もパスワード不一致の場合もErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("admin logged in", slog.String("user_id", user.ID))
	return token, nil
}

// Register はパスワードをハッシュ化して管理者ユーザーを作成する。
// ユーザー名重複時はmodel.ErrDuplicate、空の入力はmodel.ErrValidationをラップして返す。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	if password == "" {
		return nil, model.NewValidationError("password is required")
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("admin registered", slog.String("user_id", user.ID))
	return user, nil
}

// Verify はトークンを検証してユーザーIDを返す。認証ミドルウェアのTokenVerifierとして使う。
func (s *Service) Verify(token string) (string, error) {
	return s.tokens.Verify(token)
}
