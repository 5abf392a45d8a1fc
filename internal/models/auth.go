package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest carries login credentials plus request metadata used
// for auditing.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse is the issued token pair and the authenticated user.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	User         UserInfo  `json:"user"`
}

// RefreshTokenRequest exchanges a refresh token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse is the rotated token pair.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest carries a password change payload.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo is the public subset of a user returned with tokens.
type UserInfo struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
}

// JWTClaims is the JWT payload for access tokens.
type JWTClaims struct {
	UserID      int64    `json:"user_id"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	jwt.RegisteredClaims
}
