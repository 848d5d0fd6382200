package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/server"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiFixture struct {
	server     *httptest.Server
	listCalls  atomic.Int64
	filesCalls atomic.Int64
	// midList runs once, after the next letter list is rendered and before it is sent.
	midList atomic.Pointer[func()]
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	userService, err := users.NewService(users.ServiceConfig{Repository: users.NewMemoryRepository(), Logger: logger})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	letterService, err := letters.NewService(letters.ServiceConfig{Repository: letters.NewMemoryRepository(time.Now), Logger: logger})
	if err != nil {
		t.Fatalf("letters: %v", err)
	}
	driveService, err := drive.NewService(drive.ServiceConfig{Users: userService, Letters: letterService, Uploader: drive.NewMockUploader(), Logger: logger})
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	tokens, err := auth.NewSessionTokens(auth.SessionTokenConfig{SigningSecret: []byte("client-secret")})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{Store: auth.NewMemorySessionStore(), Tokens: tokens, Logger: logger})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Users:    userService,
		Letters:  letterService,
		Drive:    driveService,
		Sessions: sessions,
		Cookie:   server.CookieConfig{Name: "inkwell_session"},
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	fixture := &apiFixture{}
	fixture.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			switch r.URL.Path {
			case "/api/letters":
				fixture.listCalls.Add(1)
			case "/api/drive/files":
				fixture.filesCalls.Add(1)
			}
		}
		if r.Method == http.MethodGet && r.URL.Path == "/api/letters" {
			if hook := fixture.midList.Swap(nil); hook != nil {
				recorder := httptest.NewRecorder()
				handler.ServeHTTP(recorder, r)
				(*hook)()
				for key, values := range recorder.Header() {
					w.Header()[key] = values
				}
				w.WriteHeader(recorder.Code)
				_, _ = w.Write(recorder.Body.Bytes())
				return
			}
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *apiFixture) newClient(t *testing.T) *Client {
	t.Helper()
	apiClient, err := New(Config{BaseURL: f.server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return apiClient
}

func signedIn(t *testing.T, f *apiFixture, uid, email string) *Client {
	t.Helper()
	apiClient := f.newClient(t)
	if _, err := apiClient.SignIn(context.Background(), Identity{UID: uid, Email: email}, ""); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	return apiClient
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "://bad"} {
		if _, err := New(Config{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	fixture := newAPIFixture(t)
	ctx := context.Background()
	apiClient := fixture.newClient(t)

	if _, err := apiClient.CurrentUser(ctx); !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 before sign-in, got %v", err)
	}

	first, err := apiClient.SignIn(ctx, Identity{UID: "g1", Email: "a@x.com", DisplayName: "Ada"}, "")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	second, err := apiClient.SignIn(ctx, Identity{UID: "g1", Email: "a@x.com"}, "")
	if err != nil {
		t.Fatalf("repeat sign in failed: %v", err)
	}
	if first.ID != second.ID || first.Name != "Ada" {
		t.Fatalf("unexpected users %#v %#v", first, second)
	}

	me, err := apiClient.CurrentUser(ctx)
	if err != nil || me.ID != first.ID {
		t.Fatalf("unexpected current user %#v, %v", me, err)
	}

	if err := apiClient.SignOut(ctx); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	_, err = apiClient.CurrentUser(ctx)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Kind != "unauthorized" {
		t.Fatalf("expected unauthorized APIError after sign-out, got %#v", err)
	}
}

func TestCookiesRestoreSession(t *testing.T) {
	fixture := newAPIFixture(t)
	original := signedIn(t, fixture, "g1", "a@x.com")

	restored := fixture.newClient(t)
	restored.SetCookies(original.Cookies())
	if _, err := restored.CurrentUser(context.Background()); err != nil {
		t.Fatalf("restored session should be valid: %v", err)
	}
}

func TestLetterListIsCachedUntilMutation(t *testing.T) {
	fixture := newAPIFixture(t)
	ctx := context.Background()
	apiClient := signedIn(t, fixture, "g1", "a@x.com")

	if _, err := apiClient.ListLetters(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := apiClient.ListLetters(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if calls := fixture.listCalls.Load(); calls != 1 {
		t.Fatalf("expected one list request, got %d", calls)
	}

	created, err := apiClient.CreateLetter(ctx, NewLetter{Content: "<p>Hi</p>"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Title != "Untitled Letter" {
		t.Fatalf("expected default title, got %q", created.Title)
	}
	list, err := apiClient.ListLetters(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %#v, %v", list, err)
	}
	if calls := fixture.listCalls.Load(); calls != 2 {
		t.Fatalf("create should invalidate the cache, got %d requests", calls)
	}

	if _, err := apiClient.UpdateLetter(ctx, created.ID+100, LetterPatch{Title: ptr("x")}); !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404, got %v", err)
	}
	if _, err := apiClient.ListLetters(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if calls := fixture.listCalls.Load(); calls != 2 {
		t.Fatalf("failed mutation must keep the cache, got %d requests", calls)
	}

	updated, err := apiClient.UpdateLetter(ctx, created.ID, LetterPatch{Title: ptr("New")})
	if err != nil || updated.Title != "New" || updated.Content != "<p>Hi</p>" {
		t.Fatalf("unexpected update %#v, %v", updated, err)
	}
	list, _ = apiClient.ListLetters(ctx)
	if len(list) != 1 || list[0].Title != "New" {
		t.Fatalf("expected refreshed list, got %#v", list)
	}

	if err := apiClient.DeleteLetter(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	list, _ = apiClient.ListLetters(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %#v", list)
	}
	if _, err := apiClient.GetLetter(ctx, created.ID); !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestLetterListDropsResultOverlappingMutation(t *testing.T) {
	fixture := newAPIFixture(t)
	ctx := context.Background()
	apiClient := signedIn(t, fixture, "g1", "a@x.com")

	var created Letter
	var createErr error
	hook := func() {
		created, createErr = apiClient.CreateLetter(ctx, NewLetter{Content: "<p>late</p>"})
	}
	fixture.midList.Store(&hook)

	stale, err := apiClient.ListLetters(ctx)
	if err != nil || len(stale) != 0 {
		t.Fatalf("expected the in-flight list to be empty, got %#v, %v", stale, err)
	}
	if createErr != nil {
		t.Fatalf("create failed: %v", createErr)
	}

	list, err := apiClient.ListLetters(ctx)
	if err != nil || len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("expected the created letter, got %#v, %v", list, err)
	}
	if calls := fixture.listCalls.Load(); calls != 2 {
		t.Fatalf("stale list must not be cached, got %d requests", calls)
	}
}

func TestValidationErrorsCarryDetails(t *testing.T) {
	fixture := newAPIFixture(t)
	apiClient := signedIn(t, fixture, "g1", "a@x.com")

	_, err := apiClient.CreateLetter(context.Background(), NewLetter{Content: "<script>x</script>"})
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusBadRequest || apiErr.Kind != "invalid_request" {
		t.Fatalf("expected invalid_request APIError, got %#v", err)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Field != "content" {
		t.Fatalf("unexpected details %#v", apiErr.Details)
	}
}

func TestForbiddenLetterAccess(t *testing.T) {
	fixture := newAPIFixture(t)
	ctx := context.Background()
	owner := signedIn(t, fixture, "g1", "a@x.com")
	intruder := signedIn(t, fixture, "g2", "b@x.com")

	letter, err := owner.CreateLetter(ctx, NewLetter{Title: ptr("Private"), Content: "<p>s</p>"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := intruder.GetLetter(ctx, letter.ID); !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestDriveFlow(t *testing.T) {
	fixture := newAPIFixture(t)
	ctx := context.Background()
	apiClient := signedIn(t, fixture, "g1", "a@x.com")

	letter, err := apiClient.CreateLetter(ctx, NewLetter{Title: ptr("Hello"), Content: "<p>Hi</p>"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	save := DriveSave{LetterID: strconv.FormatUint(letter.ID, 10), Title: "Hello", Content: "<p>Hi</p>", FileName: "hello", ConvertToGoogleDocs: true}
	if _, err := apiClient.SaveToDrive(ctx, save); !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected 400 without drive access, got %v", err)
	}

	consent, err := apiClient.DriveConsentURL(ctx)
	if err != nil || consent.State == "" || !strings.Contains(consent.URL, "state="+consent.State) {
		t.Fatalf("unexpected consent %#v, %v", consent, err)
	}

	user, err := apiClient.AuthorizeDrive(ctx, "consent-code")
	if err != nil || !user.HasDriveAccess {
		t.Fatalf("authorize failed: %#v, %v", user, err)
	}

	files, err := apiClient.ListDriveFiles(ctx)
	if err != nil || len(files) != 0 {
		t.Fatalf("expected no files yet, got %#v, %v", files, err)
	}

	result, err := apiClient.SaveToDrive(ctx, save)
	if err != nil || !result.Success || result.FileID == "" {
		t.Fatalf("unexpected save result %#v, %v", result, err)
	}
	files, err = apiClient.ListDriveFiles(ctx)
	if err != nil || len(files) != 1 || files[0].ID != letter.ID {
		t.Fatalf("unexpected files %#v, %v", files, err)
	}
	if calls := fixture.filesCalls.Load(); calls != 2 {
		t.Fatalf("save should invalidate the file cache, got %d requests", calls)
	}
}

func TestEditorCommands(t *testing.T) {
	fixture := newAPIFixture(t)
	apiClient := signedIn(t, fixture, "g1", "a@x.com")
	toolbar, err := apiClient.EditorCommands(context.Background())
	if err != nil {
		t.Fatalf("editor commands failed: %v", err)
	}
	if len(toolbar.Commands) != 9 || toolbar.DefaultFontSizePx != 14 {
		t.Fatalf("unexpected toolbar %#v", toolbar)
	}
}

func TestApplyEditorOperations(t *testing.T) {
	fixture := newAPIFixture(t)
	apiClient := signedIn(t, fixture, "g1", "a@x.com")

	result, err := apiClient.ApplyEditorOperations(context.Background(), EditorApply{
		Selection:  Selection{Start: 1, End: 3},
		Operations: []EditorStep{{Command: "bold"}, {Command: "font-size", FontSizePx: 18}},
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(result.Calls) != 2 || result.Calls[1].HostCommand != "fontSize" || result.Calls[1].Value != "2" {
		t.Fatalf("unexpected calls %#v", result.Calls)
	}
	if !result.State.Bold || result.State.FontSizePx != 18 || result.State.Alignment != "left" {
		t.Fatalf("unexpected state %#v", result.State)
	}

	_, err = apiClient.ApplyEditorOperations(context.Background(), EditorApply{Operations: []EditorStep{{Command: "blink"}}})
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusBadRequest || len(apiErr.Details) != 1 || apiErr.Details[0].Field != "operations[0].command" {
		t.Fatalf("expected a field error for the unknown command, got %#v", err)
	}
}

func ptr(value string) *string {
	return &value
}
