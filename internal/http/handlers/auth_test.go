package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/authhub/internal/account"
	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/http/handlers"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/upload"
	"github.com/gin-gonic/gin"
)

type fakeAccounts struct {
	err        error
	registered int
	resetFor   string
	changedFor string
}

func (f *fakeAccounts) Register(_ context.Context, in account.RegisterInput, _ upload.File) (account.AuthResult, error) {
	f.registered++
	if f.err != nil {
		return account.AuthResult{}, f.err
	}
	return account.AuthResult{User: user.View{ID: "u-1", Email: in.Email}, Created: true}, nil
}

func (f *fakeAccounts) Login(context.Context, string, string) (account.AuthResult, error) {
	if f.err != nil {
		return account.AuthResult{}, f.err
	}
	return account.AuthResult{User: user.View{ID: "u-1"}, Meta: auth.TokenPair{AccessToken: "a", RefreshToken: "r"}}, nil
}

func (f *fakeAccounts) SendOtp(context.Context, string) (account.MessageResult, error) {
	return account.MessageResult{Message: "OTP sent successfully"}, f.err
}

func (f *fakeAccounts) VerifyEmail(context.Context, string, string) (account.MessageResult, error) {
	return account.MessageResult{Message: "Email verified successfully"}, f.err
}

func (f *fakeAccounts) RefreshToken(context.Context, string) (auth.TokenPair, error) {
	return auth.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, f.err
}

func (f *fakeAccounts) ForgotPassword(context.Context, string) (account.MessageResult, error) {
	return account.MessageResult{Message: "Password reset link sent successfully"}, f.err
}

func (f *fakeAccounts) ResetPassword(_ context.Context, userID, _ string) (account.MessageResult, error) {
	f.resetFor = userID
	return account.MessageResult{Message: "Password reset successfully"}, f.err
}

func (f *fakeAccounts) ChangePassword(_ context.Context, userID, _, _ string) (account.MessageResult, error) {
	f.changedFor = userID
	return account.MessageResult{Message: "Password changed successfully"}, f.err
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyAccess(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	c := &auth.Claims{}
	c.Subject = "u-42"
	return c, nil
}

type envelopeResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAuthRouter(svc handlers.AccountService, production bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handlers.NewAuthHandler(svc, log, handlers.AuthHandlerConfig{Production: production, MaxUploadBytes: 1 << 10})
	am := middlewares.NewAuthMiddleware(fakeVerifier{})

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh-token", h.RefreshToken)
	r.POST("/reset-password", am.RequireAuth(), h.ResetPassword)
	r.POST("/change-password", am.RequireAuth(), h.ChangePassword)
	return r
}

func serve(t *testing.T, r http.Handler, req *http.Request) envelopeResponse {
	t.Helper()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp envelopeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid envelope: %v body=%s", err, w.Body.String())
	}
	if resp.StatusCode != w.Code {
		t.Fatalf("statusCode %d does not match HTTP %d", resp.StatusCode, w.Code)
	}
	return resp
}

func jsonRequest(path, body, bearer string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func TestLogin_DomainErrorKeepsMessageAndStatus(t *testing.T) {
	r := newAuthRouter(&fakeAccounts{err: apperr.Unauthorized("Invalid credentials")}, true)

	resp := serve(t, r, jsonRequest("/login", `{"email":"a@x.com","password":"password123"}`, ""))

	if resp.StatusCode != http.StatusUnauthorized || resp.Message != "Invalid credentials" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Error == nil || resp.Error.Code != "unauthorized" {
		t.Fatalf("unexpected error body: %+v", resp.Error)
	}
}

func TestLogin_StoreErrorMaskedInProduction(t *testing.T) {
	storeErr := apperr.NewStoreError(apperr.StoreConnection, errors.New("dial tcp 10.0.0.5:5432: refused"))

	prod := serve(t, newAuthRouter(&fakeAccounts{err: storeErr}, true),
		jsonRequest("/login", `{"email":"a@x.com","password":"password123"}`, ""))

	if prod.StatusCode != http.StatusInternalServerError || prod.Message != "Internal Server Error" {
		t.Fatalf("production response leaked detail: %+v", prod)
	}

	dev := serve(t, newAuthRouter(&fakeAccounts{err: storeErr}, false),
		jsonRequest("/login", `{"email":"a@x.com","password":"password123"}`, ""))

	if dev.StatusCode != http.StatusInternalServerError || dev.Message == "Internal Server Error" {
		t.Fatalf("dev response should keep the cause: %+v", dev)
	}
}

func TestLogin_UniqueStoreErrorIsConflict(t *testing.T) {
	storeErr := apperr.NewStoreError(apperr.StoreUniqueConstraint, nil, "email must be unique")

	resp := serve(t, newAuthRouter(&fakeAccounts{err: storeErr}, true),
		jsonRequest("/login", `{"email":"a@x.com","password":"password123"}`, ""))

	if resp.StatusCode != http.StatusConflict || resp.Message != "email must be unique" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRefreshToken_Success(t *testing.T) {
	resp := serve(t, newAuthRouter(&fakeAccounts{}, false), jsonRequest("/refresh-token", `{"refreshToken":"r"}`, ""))

	if !resp.Success || resp.Message != "Token refreshed successfully" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var pair auth.TokenPair
	if err := json.Unmarshal(resp.Data, &pair); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestPasswordRoutes_UseTokenSubject(t *testing.T) {
	svc := &fakeAccounts{}
	r := newAuthRouter(svc, false)

	resp := serve(t, r, jsonRequest("/reset-password", `{"password":"password123"}`, "good"))
	if !resp.Success || resp.Message != "Password reset successfully" || svc.resetFor != "u-42" {
		t.Fatalf("reset: %+v resetFor=%q", resp, svc.resetFor)
	}

	resp = serve(t, r, jsonRequest("/change-password", `{"password":"password123","newPassword":"password456"}`, "good"))
	if !resp.Success || svc.changedFor != "u-42" {
		t.Fatalf("change: %+v changedFor=%q", resp, svc.changedFor)
	}

	resp = serve(t, r, jsonRequest("/change-password", `{"password":"password123","newPassword":"password456"}`, "bad"))
	if resp.StatusCode != http.StatusUnauthorized || resp.Message != "Invalid or expired token" {
		t.Fatalf("bad token: %+v", resp)
	}
}

func registerRequest(t *testing.T, fields map[string]string, file []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	if file != nil {
		fw, err := mw.CreateFormFile("profileImage", "me.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/register", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRegister_FieldValidationBeforeMissingFile(t *testing.T) {
	svc := &fakeAccounts{}
	r := newAuthRouter(svc, false)

	resp := serve(t, r, registerRequest(t, map[string]string{"email": "a@x.com"}, nil))
	if resp.StatusCode != http.StatusBadRequest || resp.Message != "Password is required, Full name is required" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = serve(t, r, registerRequest(t, map[string]string{
		"email": "a@x.com", "password": "password123", "fullName": "Ada",
	}, nil))
	if resp.StatusCode != http.StatusBadRequest || resp.Message != "profileImage is required" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if svc.registered != 0 {
		t.Fatalf("service should not be called, got %d calls", svc.registered)
	}
}

func TestRegister_FileCheckedBeforeFields(t *testing.T) {
	svc := &fakeAccounts{}
	r := newAuthRouter(svc, false)

	// not an image, and the fields are missing too
	resp := serve(t, r, registerRequest(t, nil, []byte("plain text is not a picture")))
	if resp.StatusCode != http.StatusBadRequest || resp.Message != "Only .png, .jpg and .jpeg format allowed!" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = serve(t, r, registerRequest(t, nil, bytes.Repeat([]byte{0x89}, 2<<10)))
	if resp.StatusCode != http.StatusBadRequest || resp.Message != "File too large" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
