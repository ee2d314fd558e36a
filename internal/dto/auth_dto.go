package dto

import "time"

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest creates a student account.
type RegisterRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
	FirstName     string `json:"first_name" validate:"required,max=128"`
	LastName      string `json:"last_name" validate:"required,max=128"`
	StudentNumber string `json:"student_number" validate:"omitempty,max=64"`
}

// UserResponse describes the authenticated account.
type UserResponse struct {
	ID            uint     `json:"id"`
	Email         string   `json:"email"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	StudentNumber string   `json:"student_number,omitempty"`
	Role          string   `json:"role"`
	Roles         []string `json:"roles"`
}

// TokenResponse is returned after a successful login.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}
