package auth

import "github.com/keyline/server/keyline/users"

// RegisterRequest for creating a password account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest for password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserSummary is the user shape returned by auth endpoints
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// RegisterResponse returned after successful registration
type RegisterResponse struct {
	User UserSummary `json:"user"`
}

// LoginResponse returned after successful login
type LoginResponse struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

// UserResponse wraps full user data
type UserResponse struct {
	User *users.User `json:"user"`
}

// MessageResponse for simple success messages
type MessageResponse struct {
	Message string `json:"message"`
}

func summarize(u *users.User) UserSummary {
	return UserSummary{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.DisplayName,
	}
}
