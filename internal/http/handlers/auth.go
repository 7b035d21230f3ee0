package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/authhub/internal/account"
	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/upload"
	"github.com/gin-gonic/gin"
)

const profileImageField = "profileImage"

type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput, file upload.File) (account.AuthResult, error)
	Login(ctx context.Context, email, password string) (account.AuthResult, error)
	SendOtp(ctx context.Context, email string) (account.MessageResult, error)
	VerifyEmail(ctx context.Context, email, code string) (account.MessageResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) (account.MessageResult, error)
	ResetPassword(ctx context.Context, userID, newPassword string) (account.MessageResult, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (account.MessageResult, error)
}

type AuthHandlerConfig struct {
	Production     bool
	MaxUploadBytes int64
	// covers scrypt plus the store round trips of one operation
	Timeout time.Duration
}

type AuthHandler struct {
	svc AccountService
	log *slog.Logger
	cfg AuthHandlerConfig
}

func NewAuthHandler(svc AccountService, log *slog.Logger, cfg AuthHandlerConfig) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = upload.DefaultMaxBytes
	}

	return &AuthHandler{svc: svc, log: log, cfg: cfg}
}

func (h *AuthHandler) fail(ctx *gin.Context, err error) {
	RespondError(ctx, h.log, err, h.cfg.Production)
}

// Register takes a multipart form. File problems are reported before field
// validation, and a missing file after it.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var (
		file    upload.File
		hasFile bool
	)

	fh, err := ctx.FormFile(profileImageField)

	switch {
	case err == nil:
		f, closer, err := upload.FromMultipart(fh, h.cfg.MaxUploadBytes)

		if err != nil {
			h.fail(ctx, err)
			return
		}

		defer closer.Close()

		file, hasFile = f, true

	case errors.Is(err, http.ErrMissingFile):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(ctx, upload.ErrTooLarge)
			return
		}
		h.fail(ctx, apperr.Wrap(apperr.KindBadRequest, "Invalid multipart form", err))
		return
	}

	var req user.RegisterRequest

	if !BindForm(ctx, &req) {
		return
	}

	if !hasFile {
		h.fail(ctx, upload.ErrMissing)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.Register(cctx, account.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, file)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondCreated(ctx, "User registered successfully!. Please verify your email.", res)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.Login(cctx, req.Email, req.Password)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, "Login successful", res)
}

func (h *AuthHandler) SendOtp(ctx *gin.Context) {
	var req user.EmailRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.SendOtp(cctx, req.Email)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, res.Message, res)
}

func (h *AuthHandler) VerifyEmail(ctx *gin.Context) {
	var req user.VerifyEmailRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.VerifyEmail(cctx, req.Email, req.Otp)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, res.Message, res)
}

func (h *AuthHandler) RefreshToken(ctx *gin.Context) {
	var req user.RefreshTokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	pair, err := h.svc.RefreshToken(ctx.Request.Context(), req.RefreshToken)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, "Token refreshed successfully", pair)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req user.EmailRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.ForgotPassword(cctx, req.Email)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, res.Message, res)
}

// ResetPassword runs behind RequireAuth; the bearer token is the reset link token.
func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req user.ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.ResetPassword(cctx, userID, req.Password)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, res.Message, res)
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	var req user.ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.cfg.Timeout)
	defer cancel()

	res, err := h.svc.ChangePassword(cctx, userID, req.Password, req.NewPassword)

	if err != nil {
		h.fail(ctx, err)
		return
	}

	RespondOK(ctx, res.Message, res)
}
