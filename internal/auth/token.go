package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの署名、形式、有効期限のいずれかが不正であることを表す。
var ErrInvalidToken = errors.New("invalid token")

// userIDClaim はトークンに埋め込むユーザーIDのクレーム名。
const userIDClaim = "userId"

// TokenService はセッショントークンの発行と検証を行う。
type TokenService interface {
	// Issue はsubjectを埋め込んだ署名済みトークンを返す。
	Issue(subject string) (string, error)
	// Verify はトークンを検証し、埋め込まれたsubjectを返す。
	Verify(token string) (string, error)
}

// JWTService はHS256で署名したJWTを使うTokenService。
// ttlが0の場合はexpクレームを付けない。
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService はJWTServiceを生成する。
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はsubjectをuserIdクレームに持つトークンを発行する。
func (s *JWTService) Issue(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	now := s.now()
	claims := jwt.MapClaims{
		userIDClaim: subject,
		"iat":       now.Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = now.Add(s.ttl).Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証してuserIdクレームを返す。
// HMAC以外の署名方式、署名不一致、期限切れ、クレーム欠落はErrInvalidTokenを返す。
func (s *JWTService) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}

	userID, ok := claims[userIDClaim].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrInvalidToken, userIDClaim)
	}
	return userID, nil
}

// compile-time interface check
var _ TokenService = (*JWTService)(nil)
