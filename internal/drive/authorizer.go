package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DriveFileScope limits access to files created by this application.
const DriveFileScope = "https://www.googleapis.com/auth/drive.file"

var errMissingClientCredentials = errors.New("drive: oauth client id and secret required")

// mockConsentPath is where the mock consent flow sends the browser straight back to.
const mockConsentPath = "/drive/callback"

// CredentialExchanger turns an authorization code into stored Drive credentials. AuthURL
// returns the consent page that eventually yields such a code.
type CredentialExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (users.Credentials, error)
}

// OAuthConfig describes the Google OAuth client used for Drive access.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides Google's endpoint; tests point it at a local server.
	Endpoint   oauth2.Endpoint
	HTTPClient *http.Client
}

// OAuthExchanger performs the authorization code exchange against Google.
type OAuthExchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuthExchanger validates cfg and returns an exchanger.
func NewOAuthExchanger(cfg OAuthConfig) (*OAuthExchanger, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errMissingClientCredentials
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}
	return &OAuthExchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{DriveFileScope},
			Endpoint:     endpoint,
		},
		httpClient: cfg.HTTPClient,
	}, nil
}

// AuthURL returns the consent URL that yields a refresh token.
func (e *OAuthExchanger) AuthURL(state string) string {
	return e.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (e *OAuthExchanger) Exchange(ctx context.Context, code string) (users.Credentials, error) {
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return users.Credentials{}, fmt.Errorf("drive: exchange authorization code: %w", err)
	}
	if token.AccessToken == "" {
		return users.Credentials{}, errors.New("drive: token response carried no access token")
	}
	return users.Credentials{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// MockExchanger grants fixed credentials for any non-empty code.
type MockExchanger struct{}

// AuthURL skips consent and points at the callback with a ready-made code.
func (MockExchanger) AuthURL(state string) string {
	query := url.Values{"code": {"mock-code"}, "state": {state}}
	return mockConsentPath + "?" + query.Encode()
}

func (MockExchanger) Exchange(ctx context.Context, code string) (users.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return users.Credentials{}, err
	}
	return users.Credentials{AccessToken: "mock_access_token", RefreshToken: "mock_refresh_token"}, nil
}
