// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// TokenCookieName は認証トークンを保持するCookieの名前。
const TokenCookieName = "token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// コンテキストキー。
var (
	userIDContextKey    = contextKey("user_id")
	userIDBoxContextKey = contextKey("user_id_box")
)

// userIDBox は外側のミドルウェアが内側で確定したユーザーIDを参照するための入れ物。
type userIDBox struct {
	userID string
}

func withUserIDBox(ctx context.Context, box *userIDBox) context.Context {
	return context.WithValue(ctx, userIDBoxContextKey, box)
}

// TokenVerifier はトークンを検証してユーザーIDを返す。
// auth.Serviceとauth.JWTServiceが満たす。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware はtokenCookieの署名済みトークンを検証するミドルウェアを返す。
// Cookieが無い、または検証に失敗した場合はunauthorizedに処理を委ね、後続には進まない。
// 検証に成功した場合はユーザーIDをリクエストコンテキストに注入する。
func NewAuthMiddleware(verifier TokenVerifier, unauthorized http.Handler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(TokenCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(cookie.Value)
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				unauthorized.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの内側であれば、ログ出力用にも記録する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if box, ok := ctx.Value(userIDBoxContextKey).(*userIDBox); ok {
		box.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}
