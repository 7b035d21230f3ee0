package user

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID              string     `json:"id"`
	FullName        string     `json:"fullName"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"` // never expose hash in JSON
	ProfileImage    string     `json:"profileImage"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (u User) Verified() bool {
	return u.EmailVerifiedAt != nil
}

// View is the sanitized shape returned to clients.
type View struct {
	ID              string     `json:"id"`
	FullName        string     `json:"fullName"`
	Email           string     `json:"email"`
	ProfileImage    string     `json:"profileImage"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt"`
}

// ToView resolves the stored image reference through resolve, which turns a
// file name into a public URL.
func (u User) ToView(resolve func(string) string) View {
	img := u.ProfileImage

	if resolve != nil && img != "" {
		img = resolve(img)
	}

	return View{
		ID:              u.ID,
		FullName:        u.FullName,
		Email:           u.Email,
		ProfileImage:    img,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		EmailVerifiedAt: u.EmailVerifiedAt,
	}
}

type RegisterRequest struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,min=8,max=16"`
	FullName string `form:"fullName" json:"fullName" binding:"required,min=3"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=16"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Otp   string `json:"otp" binding:"required,len=4"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=16"`
}

type ChangePasswordRequest struct {
	Password    string `json:"password" binding:"required,min=8,max=16"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=16"`
}
