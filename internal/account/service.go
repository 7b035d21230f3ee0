package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/otp"
	"github.com/geocoder89/authhub/internal/security"
	"github.com/geocoder89/authhub/internal/upload"
)

const (
	msgUserExists         = "User already exists"
	msgUserNotFound       = "User not found"
	msgInvalidCredentials = "Invalid credentials"
	msgEmailNotVerified   = "Email not verified"
	msgNoUserWithEmail    = "User not found with this email"
	msgAlreadyVerified    = "Email already verified"
	msgNoAccount          = "Not Account Found with this email"
	msgInvalidRefresh     = "Invalid refresh token"
	msgInvalidPassword    = "Invalid password"
	msgSamePassword       = "New password cannot be same as old password"

	msgOtpSent       = "OTP sent successfully"
	msgEmailVerified = "Email verified successfully"
	msgResetLinkSent = "Password reset link sent successfully"
	msgPasswordReset = "Password reset successfully"
)

type Config struct {
	// BaseURL prefixes password reset links.
	BaseURL string
	// ExposeDevSecrets puts OTP codes and reset links in responses.
	ExposeDevSecrets bool
}

type Service struct {
	users    UserStore
	otps     *otp.Engine
	tokens   *auth.Issuer
	uploads  upload.Storage
	notifier Notifier
	cfg      Config
	log      *slog.Logger
	prom     *observability.Prom
	now      func() time.Time
}

func NewService(
	users UserStore,
	otps *otp.Engine,
	tokens *auth.Issuer,
	uploads upload.Storage,
	notifier Notifier,
	cfg Config,
	log *slog.Logger,
	prom *observability.Prom,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:    users,
		otps:     otps,
		tokens:   tokens,
		uploads:  uploads,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		prom:     prom,
		now:      time.Now,
	}
}

// WithClock returns a copy of the service that stamps verifications with now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Register stores the profile image, then creates the account. An unverified
// account registered again gets fresh tokens for the existing user and the new
// image is discarded. Whenever no user is created the stored image is removed.
func (s *Service) Register(ctx context.Context, in RegisterInput, file upload.File) (AuthResult, error) {
	name, err := s.uploads.Store(ctx, file)

	if err != nil {
		s.prom.ObserveAuth("register", "error")
		return AuthResult{}, err
	}

	res, created, err := s.register(ctx, in, name)

	if err != nil || !created {
		s.discardUpload(ctx, name)
	}

	if err != nil {
		s.prom.ObserveAuth("register", outcome(err))
		return AuthResult{}, err
	}

	res.Created = created
	s.prom.ObserveAuth("register", "ok")

	return res, nil
}

func (s *Service) register(ctx context.Context, in RegisterInput, imageName string) (AuthResult, bool, error) {
	existing, err := s.users.GetByEmail(ctx, in.Email)

	switch {
	case err == nil && existing.Verified():
		return AuthResult{}, false, apperr.Conflict(msgUserExists)

	case err == nil:
		res, err := s.authResult(existing)
		return res, false, err

	case !errors.Is(err, user.ErrNotFound):
		return AuthResult{}, false, fmt.Errorf("find user: %w", err)
	}

	hash, err := security.HashPassword(in.Password)

	if err != nil {
		return AuthResult{}, false, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, user.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		ProfileImage: imageName,
	})

	if err != nil {
		return AuthResult{}, false, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", created.ID)

	res, err := s.authResult(created)
	return res, err == nil, err
}

func (s *Service) discardUpload(ctx context.Context, name string) {
	// the caller may already be gone; removal should still happen
	err := s.uploads.Remove(context.WithoutCancel(ctx), name)

	if err != nil {
		s.log.WarnContext(ctx, "remove unused upload", "file", name, "err", err)
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.ObserveAuth("login", "not_found")
			return AuthResult{}, apperr.NotFound(msgUserNotFound)
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if !security.CheckPassword(u.PasswordHash, password) {
		s.prom.ObserveAuth("login", "invalid_credentials")
		return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	if !u.Verified() {
		s.prom.ObserveAuth("login", "unverified")
		return AuthResult{}, apperr.Unauthorized(msgEmailNotVerified)
	}

	res, err := s.authResult(u)

	if err != nil {
		return AuthResult{}, err
	}

	s.prom.ObserveAuth("login", "ok")

	return res, nil
}

func (s *Service) SendOtp(ctx context.Context, email string) (MessageResult, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MessageResult{}, apperr.NotFound(msgNoUserWithEmail)
		}
		return MessageResult{}, fmt.Errorf("find user: %w", err)
	}

	if u.Verified() {
		return MessageResult{}, apperr.BadRequest(msgAlreadyVerified)
	}

	issued, err := s.otps.Create(ctx, u.ID, u.Email)

	if err != nil {
		return MessageResult{}, err
	}

	if s.notifier != nil {
		err = s.notifier.SendOtpEmail(ctx, u.Email, issued.Code)

		if err != nil {
			return MessageResult{}, fmt.Errorf("send otp email: %w", err)
		}
	}

	res := MessageResult{Message: msgOtpSent}

	if s.cfg.ExposeDevSecrets {
		res.Otp = issued.Code
	}

	return res, nil
}

// VerifyEmail marks the account verified and purges every code for it.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (MessageResult, error) {
	rec, err := s.otps.Verify(ctx, email, code)

	if err != nil {
		s.prom.ObserveAuth("verify_email", outcome(err))
		return MessageResult{}, err
	}

	err = s.users.MarkEmailVerified(ctx, rec.UserID, s.now().UTC())

	if err != nil {
		return MessageResult{}, fmt.Errorf("mark email verified: %w", err)
	}

	err = s.otps.Purge(ctx, rec.UserID)

	if err != nil {
		return MessageResult{}, err
	}

	s.prom.ObserveAuth("verify_email", "ok")

	return MessageResult{Message: msgEmailVerified}, nil
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)

	if err != nil {
		s.prom.ObserveAuth("refresh", "invalid")
		return auth.TokenPair{}, apperr.Wrap(apperr.KindUnauthorized, msgInvalidRefresh, err)
	}

	pair, err := s.tokens.IssuePair(userID)

	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.prom.ObserveAuth("refresh", "ok")

	return pair, nil
}

// ForgotPassword mints an access token and sends it as a reset link. The
// reset route accepts any valid access token.
func (s *Service) ForgotPassword(ctx context.Context, email string) (MessageResult, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MessageResult{}, apperr.NotFound(msgNoAccount)
		}
		return MessageResult{}, fmt.Errorf("find user: %w", err)
	}

	if !u.Verified() {
		return MessageResult{}, apperr.Unauthorized(msgEmailNotVerified)
	}

	token, err := s.tokens.IssueAccess(u.ID)

	if err != nil {
		return MessageResult{}, fmt.Errorf("issue reset token: %w", err)
	}

	link := s.resetLink(token)

	if s.notifier != nil {
		err = s.notifier.SendResetLink(ctx, u.Email, link)

		if err != nil {
			return MessageResult{}, fmt.Errorf("send reset link: %w", err)
		}
	}

	res := MessageResult{Message: msgResetLinkSent}

	if s.cfg.ExposeDevSecrets {
		res.Link = link
	}

	return res, nil
}

func (s *Service) resetLink(token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) (MessageResult, error) {
	if userID == "" {
		return MessageResult{}, apperr.NotFound(msgNoAccount)
	}

	_, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MessageResult{}, apperr.NotFound(msgNoAccount)
		}
		return MessageResult{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		return MessageResult{}, fmt.Errorf("hash password: %w", err)
	}

	err = s.users.UpdatePassword(ctx, userID, hash)

	if err != nil {
		return MessageResult{}, fmt.Errorf("update password: %w", err)
	}

	s.prom.ObserveAuth("reset_password", "ok")

	return MessageResult{Message: msgPasswordReset}, nil
}

// ChangePassword rejects a new password only when its fresh hash equals the
// stored one. Hashes are salted, so reusing the old password is accepted.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (MessageResult, error) {
	if userID == "" {
		return MessageResult{}, apperr.NotFound(msgNoAccount)
	}

	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MessageResult{}, apperr.NotFound(msgNoAccount)
		}
		return MessageResult{}, fmt.Errorf("find user: %w", err)
	}

	if !security.CheckPassword(u.PasswordHash, oldPassword) {
		s.prom.ObserveAuth("change_password", "invalid_password")
		return MessageResult{}, apperr.BadRequest(msgInvalidPassword)
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		return MessageResult{}, fmt.Errorf("hash password: %w", err)
	}

	if hash == u.PasswordHash {
		return MessageResult{}, apperr.BadRequest(msgSamePassword)
	}

	err = s.users.UpdatePassword(ctx, userID, hash)

	if err != nil {
		return MessageResult{}, fmt.Errorf("update password: %w", err)
	}

	s.prom.ObserveAuth("change_password", "ok")

	return MessageResult{Message: msgPasswordReset}, nil
}

// View returns the client shape of u with the image resolved to a URL.
func (s *Service) View(u user.User) user.View {
	return u.ToView(s.uploads.URL)
}

func (s *Service) authResult(u user.User) (AuthResult, error) {
	pair, err := s.tokens.IssuePair(u.ID)

	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	return AuthResult{User: s.View(u), Meta: pair}, nil
}

func outcome(err error) string {
	var ae *apperr.Error

	if errors.As(err, &ae) {
		return string(ae.Kind)
	}

	return "error"
}
