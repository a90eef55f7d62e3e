package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/glowhaus/storefront-backend/internal/auth"
	"github.com/glowhaus/storefront-backend/internal/users"
	pkgAuth "github.com/glowhaus/storefront-backend/pkg/auth"
	"github.com/glowhaus/storefront-backend/pkg/config"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

var controllerJWT = config.JWTConfig{Secret: "controller-secret", Issuer: "glowhaus", ExpirationMinutes: 15}

type stubAuthService struct {
	register  authsvc.RegisterRequest
	login     authsvc.LoginRequest
	refresh   authsvc.RefreshRequest
	loggedOut string
	session   *authsvc.SessionView
	err       error
}

func (s *stubAuthService) result() *authsvc.Result {
	return &authsvc.Result{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(15 * time.Minute),
		User:         &users.UserDTO{ID: uuid.New(), Email: "ana@example.com"},
	}
}

func (s *stubAuthService) Register(ctx context.Context, req authsvc.RegisterRequest) (*authsvc.Result, error) {
	s.register = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result(), nil
}

func (s *stubAuthService) Login(ctx context.Context, req authsvc.LoginRequest) (*authsvc.Result, error) {
	s.login = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result(), nil
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = accessID
	return s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, req authsvc.RefreshRequest) (*authsvc.Result, error) {
	s.refresh = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result(), nil
}

func (s *stubAuthService) Session(ctx context.Context, userID uuid.UUID) (*authsvc.SessionView, error) {
	return s.session, s.err
}

func TestAuthRegisterCarriesGuestSession(t *testing.T) {
	svc := &stubAuthService{}
	body := `{"firstName":"Ana","lastName":"Reyes","email":"ana@example.com","password":"s3cretpass"}`
	resp := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/register", body))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.register.SessionID != testSession {
		t.Fatalf("expected guest session to be forwarded, got %q", svc.register.SessionID)
	}
	if got := resp.Header().Get(TokenHeader); got != "access-token" {
		t.Fatalf("expected token header, got %q", got)
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	resp := httptest.NewRecorder()
	body := `{"firstName":"Ana","lastName":"Reyes","email":"not-an-email","password":"short"}`
	AuthRegister(&stubAuthService{}, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/register", body))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthRegisterDuplicateEmail(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}
	body := `{"firstName":"Ana","lastName":"Reyes","email":"ana@example.com","password":"s3cretpass"}`
	resp := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/register", body))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAuthLogin(t *testing.T) {
	svc := &stubAuthService{}
	resp := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"s3cretpass"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.login.Email != "ana@example.com" || svc.login.SessionID != testSession {
		t.Fatalf("unexpected login request %+v", svc.login)
	}
	var result authsvc.Result
	decodeData(t, resp, &result)
	if result.RefreshToken != "refresh-token" {
		t.Fatalf("unexpected result %+v", result)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	resp = httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ana@example.com","password":"wrong"}`))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthLogoutAcceptsExpiredToken(t *testing.T) {
	svc := &stubAuthService{}
	jti := uuid.NewString()
	token, err := pkgAuth.MintAccessToken(controllerJWT, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "ana@example.com",
		JTI:    jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := newRequest(http.MethodPost, "/api/v1/auth/logout", "")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	AuthLogout(svc, controllerJWT, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.loggedOut != jti {
		t.Fatalf("expected session %s revoked, got %q", jti, svc.loggedOut)
	}
}

func TestAuthLogoutRejectsMissingOrForgedToken(t *testing.T) {
	resp := httptest.NewRecorder()
	AuthLogout(&stubAuthService{}, controllerJWT, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/logout", ""))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req := newRequest(http.MethodPost, "/api/v1/auth/logout", "")
	req.Header.Set("Authorization", "Bearer forged")
	resp = httptest.NewRecorder()
	AuthLogout(&stubAuthService{}, controllerJWT, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefresh(t *testing.T) {
	svc := &stubAuthService{}
	resp := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/refresh", `{"accessToken":"a","refreshToken":"r"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.refresh.AccessToken != "a" || svc.refresh.RefreshToken != "r" {
		t.Fatalf("unexpected refresh request %+v", svc.refresh)
	}

	resp = httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/auth/refresh", `{"accessToken":"a"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthSession(t *testing.T) {
	svc := &stubAuthService{session: &authsvc.SessionView{Email: "ana@example.com"}}

	resp := httptest.NewRecorder()
	AuthSession(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/auth/session", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var guest *authsvc.SessionView
	decodeData(t, resp, &guest)
	if guest != nil {
		t.Fatalf("expected null session for guest, got %+v", guest)
	}

	resp = httptest.NewRecorder()
	AuthSession(svc, nil).ServeHTTP(resp, asUser(newRequest(http.MethodGet, "/api/v1/auth/session", ""), uuid.New()))
	var view authsvc.SessionView
	decodeData(t, resp, &view)
	if view.Email != "ana@example.com" {
		t.Fatalf("unexpected session %+v", view)
	}
}
