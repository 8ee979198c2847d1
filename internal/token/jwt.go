// Package token はアクセストークン（JWT）とリフレッシュトークンの生成・検証を提供する。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/gakuen/internal/model"
)

const issuer = "gakuen"

// Claims はアクセストークンに埋め込むクレーム。
// 発行時点のユーザーのロールとステータスのスナップショットを含む。
type Claims struct {
	Email  string       `json:"email"`
	Role   model.Role   `json:"role"`
	Status model.Status `json:"status"`
	jwt.RegisteredClaims
}

// Manager はHS256署名付きアクセストークンの発行と検証を行う。
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザーのスナップショットを含むアクセストークンを発行する。
func (m *Manager) Issue(user *model.User) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse はアクセストークンを検証し、Identityを返す。
// 署名不正・期限切れ・アルゴリズム不一致はすべてエラーとなる。
func (m *Manager) Parse(tokenString string) (*model.Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return &model.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		Status: claims.Status,
	}, nil
}

// NewRefreshToken は暗号的に安全なリフレッシュトークンの生値を生成する。
func NewRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken はトークン生値のSHA-256ハッシュを返す。
// 保存・検索はこのハッシュのみで行い、生値は永続化しない。
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
