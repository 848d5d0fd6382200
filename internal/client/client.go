package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const defaultTimeout = 15 * time.Second

// Config describes how the client reaches the API.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the inkwell API on behalf of one signed-in user. Letter and Drive file
// lists are cached until a successful mutation invalidates them.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger

	mu          sync.Mutex
	generation  uint64
	letters     []Letter
	lettersOK   bool
	driveFiles  []Letter
	driveFileOK bool
}

// New builds a Client with its own cookie jar unless the supplied HTTP client carries one.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		clone := *httpClient
		clone.Jar = jar
		httpClient = &clone
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: base, http: httpClient, logger: logger}, nil
}

// Cookies returns the cookies the jar holds for the API origin.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.baseURL)
}

// SetCookies restores previously saved cookies for the API origin.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.http.Jar.SetCookies(c.baseURL, cookies)
}

// SignIn establishes a session for the identity. idToken may be empty when the server does
// not verify Google tokens.
func (c *Client) SignIn(ctx context.Context, identity Identity, idToken string) (User, error) {
	payload := struct {
		User    Identity `json:"user"`
		IDToken string   `json:"idToken,omitempty"`
	}{User: identity, IDToken: idToken}
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/login", payload, &user); err != nil {
		return User{}, err
	}
	c.invalidate()
	return user, nil
}

// SignOut ends the current session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ListLetters returns the caller's letters, served from cache when valid.
func (c *Client) ListLetters(ctx context.Context) ([]Letter, error) {
	c.mu.Lock()
	if c.lettersOK {
		cached := append([]Letter(nil), c.letters...)
		c.mu.Unlock()
		return cached, nil
	}
	generation := c.generation
	c.mu.Unlock()

	var result []Letter
	if err := c.do(ctx, http.MethodGet, "/api/letters", nil, &result); err != nil {
		return nil, err
	}
	c.mu.Lock()
	// A mutation that completed during the fetch may not be reflected in result.
	if c.generation == generation {
		c.letters = append([]Letter(nil), result...)
		c.lettersOK = true
	}
	c.mu.Unlock()
	return result, nil
}

// GetLetter fetches one letter.
func (c *Client) GetLetter(ctx context.Context, id uint64) (Letter, error) {
	var letter Letter
	if err := c.do(ctx, http.MethodGet, letterPath(id), nil, &letter); err != nil {
		return Letter{}, err
	}
	return letter, nil
}

// CreateLetter stores a new letter.
func (c *Client) CreateLetter(ctx context.Context, letter NewLetter) (Letter, error) {
	var created Letter
	if err := c.do(ctx, http.MethodPost, "/api/letters", letter, &created); err != nil {
		return Letter{}, err
	}
	c.invalidate()
	return created, nil
}

// UpdateLetter applies a partial update.
func (c *Client) UpdateLetter(ctx context.Context, id uint64, patch LetterPatch) (Letter, error) {
	var updated Letter
	if err := c.do(ctx, http.MethodPatch, letterPath(id), patch, &updated); err != nil {
		return Letter{}, err
	}
	c.invalidate()
	return updated, nil
}

// DeleteLetter removes a letter.
func (c *Client) DeleteLetter(ctx context.Context, id uint64) error {
	if err := c.do(ctx, http.MethodDelete, letterPath(id), nil, nil); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// SaveToDrive exports a document and, for a stored letter, records the remote file on it.
func (c *Client) SaveToDrive(ctx context.Context, request DriveSave) (DriveSaveResult, error) {
	var result DriveSaveResult
	if err := c.do(ctx, http.MethodPost, "/api/drive/save", request, &result); err != nil {
		return DriveSaveResult{}, err
	}
	c.invalidate()
	return result, nil
}

// ListDriveFiles returns the caller's exported letters, served from cache when valid.
func (c *Client) ListDriveFiles(ctx context.Context) ([]Letter, error) {
	c.mu.Lock()
	if c.driveFileOK {
		cached := append([]Letter(nil), c.driveFiles...)
		c.mu.Unlock()
		return cached, nil
	}
	generation := c.generation
	c.mu.Unlock()

	var result []Letter
	if err := c.do(ctx, http.MethodGet, "/api/drive/files", nil, &result); err != nil {
		return nil, err
	}
	c.mu.Lock()
	// A mutation that completed during the fetch may not be reflected in result.
	if c.generation == generation {
		c.driveFiles = append([]Letter(nil), result...)
		c.driveFileOK = true
	}
	c.mu.Unlock()
	return result, nil
}

// DriveConsentURL starts a Drive consent flow.
func (c *Client) DriveConsentURL(ctx context.Context) (DriveConsent, error) {
	var consent DriveConsent
	if err := c.do(ctx, http.MethodGet, "/api/drive/authorize-url", nil, &consent); err != nil {
		return DriveConsent{}, err
	}
	return consent, nil
}

// AuthorizeDrive exchanges an OAuth authorization code for Drive access.
func (c *Client) AuthorizeDrive(ctx context.Context, code string) (User, error) {
	var user User
	payload := struct {
		Code string `json:"code"`
	}{Code: code}
	if err := c.do(ctx, http.MethodPost, "/api/drive/authorize", payload, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// EditorCommands returns the toolbar enumeration.
func (c *Client) EditorCommands(ctx context.Context) (EditorToolbar, error) {
	var toolbar EditorToolbar
	if err := c.do(ctx, http.MethodGet, "/api/editor/commands", nil, &toolbar); err != nil {
		return EditorToolbar{}, err
	}
	return toolbar, nil
}

// ApplyEditorOperations resolves toolbar operations into host editing calls.
func (c *Client) ApplyEditorOperations(ctx context.Context, request EditorApply) (EditorApplyResult, error) {
	var result EditorApplyResult
	if err := c.do(ctx, http.MethodPost, "/api/editor/apply", request, &result); err != nil {
		return EditorApplyResult{}, err
	}
	return result, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.generation++
	c.letters, c.lettersOK = nil, false
	c.driveFiles, c.driveFileOK = nil, false
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()
	c.logger.Debug("api call", zap.String("method", method), zap.String("path", path), zap.Int("status", response.StatusCode))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return decodeAPIError(response)
	}
	if out == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(response *http.Response) error {
	apiErr := &APIError{StatusCode: response.StatusCode}
	var payload struct {
		Error   string        `json:"error"`
		Code    string        `json:"code"`
		Message string        `json:"message"`
		Details []ErrorDetail `json:"details"`
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err == nil && json.Unmarshal(data, &payload) == nil {
		apiErr.Kind = payload.Error
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		apiErr.Details = payload.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(response.StatusCode)
	}
	return apiErr
}

func letterPath(id uint64) string {
	return "/api/letters/" + strconv.FormatUint(id, 10)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
