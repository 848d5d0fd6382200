package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testCookieName = "inkwell_session"

type testServer struct {
	handler  http.Handler
	users    *users.Service
	letters  *letters.Service
	sessions *auth.SessionManager
	logs     *observer.ObservedLogs
}

type testServerOption func(*Dependencies)

func withVerifier(verifier GoogleVerifier) testServerOption {
	return func(deps *Dependencies) {
		deps.GoogleVerifier = verifier
	}
}

func newTestServer(t *testing.T, options ...testServerOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	userService, err := users.NewService(users.ServiceConfig{Repository: users.NewMemoryRepository(), Logger: logger})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	letterService, err := letters.NewService(letters.ServiceConfig{Repository: letters.NewMemoryRepository(time.Now), Logger: logger})
	if err != nil {
		t.Fatalf("failed to build letter service: %v", err)
	}
	driveService, err := drive.NewService(drive.ServiceConfig{
		Users:    userService,
		Letters:  letterService,
		Uploader: drive.NewMockUploader(),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to build drive service: %v", err)
	}
	tokens, err := auth.NewSessionTokens(auth.SessionTokenConfig{SigningSecret: []byte("test-secret")})
	if err != nil {
		t.Fatalf("failed to build session tokens: %v", err)
	}
	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{Store: auth.NewMemorySessionStore(), Tokens: tokens, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build session manager: %v", err)
	}

	deps := Dependencies{
		Users:          userService,
		Letters:        letterService,
		Drive:          driveService,
		Sessions:       sessions,
		Cookie:         CookieConfig{Name: testCookieName},
		AllowedOrigins: []string{"http://localhost:5173"},
		Logger:         logger,
	}
	for _, option := range options {
		option(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testServer{handler: handler, users: userService, letters: letterService, sessions: sessions, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch value := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(value))
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

// signIn logs in the identity and returns the session cookie.
func (s *testServer) signIn(t *testing.T, uid, email string) *http.Cookie {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/login", map[string]any{
		"user": map[string]string{"uid": uid, "email": email},
	}, nil)
	if recorder.Code != http.StatusOK && recorder.Code != http.StatusCreated {
		t.Fatalf("login failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	return sessionCookie(t, recorder)
}

func sessionCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == testCookieName {
			return cookie
		}
	}
	t.Fatalf("response did not set the session cookie")
	return nil
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode %q: %v", recorder.Body.String(), err)
	}
	return value
}

type stubVerifier struct {
	claims auth.GoogleClaims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (auth.GoogleClaims, error) {
	return s.claims, s.err
}
