// Package token 负责签发和校验访问令牌（JWT）。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTManager 负责 JWT 的签发与校验
type JWTManager struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
}

// CustomClaims 是令牌中携带的调用者身份
type CustomClaims struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建 JWTManager，accessTokenExpireHours 小于等于 0 时默认 24 小时
func NewJWTManager(secret string, accessTokenExpireHours int, issuer string) *JWTManager {
	if accessTokenExpireHours <= 0 {
		accessTokenExpireHours = 24
	}
	return &JWTManager{
		secretKey: []byte(secret),
		ttl:       time.Duration(accessTokenExpireHours) * time.Hour,
		issuer:    issuer,
	}
}

// GenerateToken 为指定用户签发 access token
func (m *JWTManager) GenerateToken(userID uint, username string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// VerifyToken 校验签名与有效期，成功时返回 claims
func (m *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*CustomClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RemainingTTL 返回令牌距离过期的剩余时间，用于设置黑名单的过期时间
func RemainingTTL(claims *CustomClaims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := time.Until(claims.ExpiresAt.Time)
	if d < 0 {
		return 0
	}
	return d
}
