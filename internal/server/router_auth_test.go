package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSessionManager struct {
	resolveErr error
	userID     uint64
}

func (s stubSessionManager) Start(context.Context, uint64) (auth.IssuedSession, error) {
	return auth.IssuedSession{}, errors.New("not implemented")
}

func (s stubSessionManager) Resolve(context.Context, string) (uint64, error) {
	return s.userID, s.resolveErr
}

func (s stubSessionManager) End(context.Context, string) error {
	return nil
}

func runAuthorizeRequest(t *testing.T, sessions SessionManager, cookie *http.Cookie) (*httptest.ResponseRecorder, *gin.Context, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/api/letters", http.NoBody)
	if cookie != nil {
		request.AddCookie(cookie)
	}
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: sessions,
		cookie:   CookieConfig{Name: testCookieName},
		logger:   zap.New(core),
	}
	handler.authorizeRequest(ctx)
	return recorder, ctx, logs
}

func TestAuthorizeRequestLogsExpiredSessionAtInfoLevel(t *testing.T) {
	recorder, _, logs := runAuthorizeRequest(t,
		stubSessionManager{resolveErr: auth.ErrExpiredSessionToken},
		&http.Cookie{Name: testCookieName, Value: "expired-token"})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired session, got %s", entry.Level)
	}
	if entry.Message != "session validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired session error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedSessionErrorAtWarnLevel(t *testing.T) {
	recorder, _, logs := runAuthorizeRequest(t,
		stubSessionManager{resolveErr: auth.ErrInvalidSessionToken},
		&http.Cookie{Name: testCookieName, Value: "invalid-token"})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected a single warn entry, got %v", entries)
	}
}

func TestAuthorizeRequestRejectsMissingCookie(t *testing.T) {
	recorder, ctx, logs := runAuthorizeRequest(t, stubSessionManager{userID: 1}, nil)
	if recorder.Code != http.StatusUnauthorized || !ctx.IsAborted() {
		t.Fatalf("expected aborted 401, got %d", recorder.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("missing cookies should not be logged")
	}
}

func TestAuthorizeRequestAttachesUserID(t *testing.T) {
	recorder, ctx, _ := runAuthorizeRequest(t, stubSessionManager{userID: 42}, &http.Cookie{Name: testCookieName, Value: "token"})
	if ctx.IsAborted() {
		t.Fatalf("request should continue, got %d", recorder.Code)
	}
	if userID, ok := currentUserID(ctx); !ok || userID != 42 {
		t.Fatalf("expected user 42 on context, got %d", userID)
	}
}

func TestLoginCreatesThenResolvesSameUser(t *testing.T) {
	server := newTestServer(t)
	payload := map[string]any{"user": map[string]string{
		"uid":         "g1",
		"email":       "a@x.com",
		"displayName": "Ada",
		"photoURL":    "https://example.com/ada.png",
	}}

	first := server.do(t, http.MethodPost, "/api/login", payload, nil)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first login, got %d: %s", first.Code, first.Body.String())
	}
	created := decode[userPayload](t, first)
	if created.Name != "Ada" || created.Picture == nil || created.HasDriveAccess {
		t.Fatalf("unexpected user %#v", created)
	}
	cookie := sessionCookie(t, first)
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Fatalf("unexpected cookie attributes %#v", cookie)
	}

	second := server.do(t, http.MethodPost, "/auth/login", payload, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat login, got %d", second.Code)
	}
	if decode[userPayload](t, second).ID != created.ID {
		t.Fatalf("repeat login must resolve to the same user")
	}

	for _, path := range []string{"/api/user", "/auth/me"} {
		me := server.do(t, http.MethodGet, path, nil, cookie)
		if me.Code != http.StatusOK || decode[userPayload](t, me).ID != created.ID {
			t.Fatalf("%s returned %d: %s", path, me.Code, me.Body.String())
		}
	}
}

func TestLoginDerivesDisplayNameAndKeepsIdentitiesDistinct(t *testing.T) {
	server := newTestServer(t)
	first := server.do(t, http.MethodPost, "/api/login", map[string]any{"user": map[string]string{"uid": "g1", "email": "ada@x.com"}}, nil)
	second := server.do(t, http.MethodPost, "/api/login", map[string]any{"user": map[string]string{"uid": "g2", "email": "bob@x.com"}}, nil)
	one, two := decode[userPayload](t, first), decode[userPayload](t, second)
	if one.Name != "ada" || two.Name != "bob" || one.ID == two.ID {
		t.Fatalf("unexpected users %#v %#v", one, two)
	}
}

func TestLoginRejectsMalformedPayloads(t *testing.T) {
	server := newTestServer(t)
	testCases := map[string]any{
		"missing-user":  map[string]any{},
		"missing-uid":   map[string]any{"user": map[string]string{"email": "a@x.com"}},
		"missing-email": map[string]any{"user": map[string]string{"uid": "g1"}},
		"not-json":      "{",
		"wrong-type":    map[string]any{"user": "g1"},
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			recorder := server.do(t, http.MethodPost, "/api/login", body, nil)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", recorder.Code)
			}
			if decode[errorPayload](t, recorder).Error != kindInvalidRequest {
				t.Fatalf("unexpected error body %s", recorder.Body.String())
			}
		})
	}
}

func TestLoginWithVerifier(t *testing.T) {
	payload := func(idToken string) map[string]any {
		return map[string]any{"user": map[string]string{"uid": "g1", "email": "claimed@x.com"}, "idToken": idToken}
	}

	rejecting := newTestServer(t, withVerifier(stubVerifier{err: auth.ErrInvalidIDToken}))
	if recorder := rejecting.do(t, http.MethodPost, "/api/login", payload(""), nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without id token, got %d", recorder.Code)
	}
	if recorder := rejecting.do(t, http.MethodPost, "/api/login", payload("bad"), nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for rejected id token, got %d", recorder.Code)
	}

	mismatched := newTestServer(t, withVerifier(stubVerifier{claims: auth.GoogleClaims{Subject: "g2"}}))
	if recorder := mismatched.do(t, http.MethodPost, "/api/login", payload("token"), nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for subject mismatch, got %d", recorder.Code)
	}

	accepting := newTestServer(t, withVerifier(stubVerifier{claims: auth.GoogleClaims{Subject: "g1", Email: "verified@x.com"}}))
	recorder := accepting.do(t, http.MethodPost, "/api/login", payload("token"), nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if decode[userPayload](t, recorder).Email != "verified@x.com" {
		t.Fatalf("verified email must take precedence")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	server := newTestServer(t)
	cookie := server.signIn(t, "g1", "a@x.com")

	recorder := server.do(t, http.MethodPost, "/api/logout", nil, cookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	cleared := sessionCookie(t, recorder)
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected the cookie to be expired, got %#v", cleared)
	}

	if recorder := server.do(t, http.MethodGet, "/api/user", nil, cookie); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session must be rejected, got %d", recorder.Code)
	}
	if recorder := server.do(t, http.MethodPost, "/api/logout", nil, cookie); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("logout without a session must be rejected, got %d", recorder.Code)
	}
}

func TestCurrentUserMissingRecord(t *testing.T) {
	server := newTestServer(t)
	issued, err := server.sessions.Start(context.Background(), 999)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	recorder := server.do(t, http.MethodGet, "/api/user", nil, &http.Cookie{Name: testCookieName, Value: issued.Token})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing user, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	server := newTestServer(t)
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/logout"},
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/api/letters"},
		{http.MethodPost, "/api/letters"},
		{http.MethodGet, "/api/letters/1"},
		{http.MethodPatch, "/api/letters/1"},
		{http.MethodDelete, "/api/letters/1"},
		{http.MethodPost, "/api/drive/save"},
		{http.MethodGet, "/api/drive/files"},
		{http.MethodPost, "/api/drive/authorize"},
		{http.MethodGet, "/api/editor/commands"},
	}
	forged := &http.Cookie{Name: testCookieName, Value: "forged"}
	for _, route := range routes {
		for _, cookie := range []*http.Cookie{nil, forged} {
			recorder := server.do(t, route.method, route.path, nil, cookie)
			if recorder.Code != http.StatusUnauthorized {
				t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, recorder.Code)
			}
			if decode[errorPayload](t, recorder).Error != kindUnauthorized {
				t.Fatalf("%s %s: unexpected body %s", route.method, route.path, recorder.Body.String())
			}
		}
	}
}
