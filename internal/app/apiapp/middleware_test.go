package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	redrepo "github.com/campusmatch/backend/internal/repo/redis"
	authsvc "github.com/campusmatch/backend/internal/services/auth"
)

func newAuthServiceForTest(t *testing.T) *authsvc.Service {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client := redrepo.NewClient(mini.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	return authsvc.NewService(authsvc.Dependencies{
		JWT:            authsvc.NewJWTManager("test-secret", 15*time.Minute),
		Sessions:       redrepo.NewSessionRepo(client),
		AllowedDomains: []string{"student.bsu.by"},
	})
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mw := AuthMiddleware(newAuthServiceForTest(t), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without bearer token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	mw := AuthMiddleware(newAuthServiceForTest(t), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called with an invalid token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewarePutsIdentityInContext(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client := redrepo.NewClient(mini.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	sessions := redrepo.NewSessionRepo(client)
	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	service := authsvc.NewService(authsvc.Dependencies{
		JWT:            jwtManager,
		Sessions:       sessions,
		AllowedDomains: []string{"student.bsu.by"},
	})

	const userID = int64(42)
	sid, err := authsvc.NewSessionID()
	if err != nil {
		t.Fatalf("new session id: %v", err)
	}
	refresh, err := authsvc.NewRefreshToken()
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if err := sessions.Create(context.Background(), authsvc.SessionRecord{
		SID:       sid,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, refresh); err != nil {
		t.Fatalf("create session: %v", err)
	}

	token, _, err := jwtManager.GenerateAccessToken(userID, sid)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	mw := AuthMiddleware(service, zap.NewNop())
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("identity missing in context")
		}
		if identity.UserID != userID || identity.SID != sid {
			t.Fatalf("identity mismatch: %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}
