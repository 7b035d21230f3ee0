package account

import (
	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/domain/user"
)

// AuthResult is returned by register and login.
type AuthResult struct {
	User user.View      `json:"user"`
	Meta auth.TokenPair `json:"meta"`

	// Created is false when an unverified account was registered again.
	Created bool `json:"-"`
}

// MessageResult carries a confirmation message and, when dev secrets are
// exposed, the code or link that was emailed.
type MessageResult struct {
	Message string `json:"message"`
	Otp     string `json:"otp,omitempty"`
	Link    string `json:"link,omitempty"`
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}
