package domain

import "time"

// User represents a chat user.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	ProfilePic   string    `json:"profilePic"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	FullName string `json:"fullName" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest carries a new profile picture as a data URL and an
// optional new display name.
type UpdateProfileRequest struct {
	ProfilePic string  `json:"profilePic" binding:"required"`
	FullName   *string `json:"fullName" binding:"omitempty,max=100"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
