package dto

import "time"

// LoginRequest 登录请求 DTO
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// UserDTO 用户信息
type UserDTO struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse 登录响应 DTO
type LoginResponse struct {
	Token     string    `json:"token"`
	User      UserDTO   `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}
