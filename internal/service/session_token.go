package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims 外部认证服务签发的会话令牌声明
type SessionClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Station  string `json:"station,omitempty"`
	jwt.RegisteredClaims
}

// Actor 转换为操作人
func (c *SessionClaims) Actor() Actor {
	return Actor{
		ID:          c.UserID,
		Username:    strings.TrimSpace(c.Username),
		Role:        strings.ToLower(strings.TrimSpace(c.Role)),
		StationCode: strings.ToUpper(strings.TrimSpace(c.Station)),
	}
}

// SignSessionToken 签发 HS256 会话令牌（供联调与测试使用）
func SignSessionToken(secret, issuer string, actor Actor, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret is required")
	}
	now := time.Now()
	claims := SessionClaims{
		UserID:   actor.ID,
		Username: actor.Username,
		Role:     actor.Role,
		Station:  actor.StationCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken 校验并解析会话令牌，issuer 为空时不校验签发方
func ParseSessionToken(secret, issuer, tokenString string) (*SessionClaims, error) {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if strings.TrimSpace(issuer) != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == 0 || strings.TrimSpace(claims.Role) == "" {
		return nil, errors.New("token is missing user_id or role")
	}
	return claims, nil
}
