package models

import "github.com/golang-jwt/jwt/v5"

// Claims represents the JWT claims carried by an admin session token.
// Claims 代表管理员会话令牌中的 JWT 声明。
type Claims struct {
	jwt.RegisteredClaims
	// Username is the authenticated administrator.
	// Username 是已认证的管理员。
	Username string `json:"username"`
	// Role is always "admin" in the current access model.
	Role string `json:"role"`
}
