package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/drive"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey     = "inkwell_user_id"
	defaultCookieName    = "inkwell_session"
	defaultAllowedOrigin = "http://localhost:5173"
)

var (
	errMissingUserService    = errors.New("user service dependency required")
	errMissingLetterService  = errors.New("letter service dependency required")
	errMissingDriveService   = errors.New("drive service dependency required")
	errMissingSessionManager = errors.New("session manager dependency required")
)

// GoogleVerifier checks Google ID tokens presented at sign-in.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// SessionManager issues, resolves and revokes cookie sessions.
type SessionManager interface {
	Start(ctx context.Context, userID uint64) (auth.IssuedSession, error)
	Resolve(ctx context.Context, token string) (uint64, error)
	End(ctx context.Context, token string) error
}

// UserService resolves identities to users.
type UserService interface {
	SignIn(ctx context.Context, identity users.Identity) (users.SignInResult, error)
	Get(ctx context.Context, userID uint64) (users.User, error)
}

// LetterService performs owner-checked letter operations.
type LetterService interface {
	List(ctx context.Context, ownerID uint64) ([]letters.Letter, error)
	Get(ctx context.Context, ownerID, letterID uint64) (letters.Letter, error)
	Create(ctx context.Context, ownerID uint64, input letters.CreateInput) (letters.Letter, error)
	Update(ctx context.Context, ownerID, letterID uint64, patch letters.Patch) (letters.Letter, error)
	Delete(ctx context.Context, ownerID, letterID uint64) error
}

// DriveService exports letters and manages Drive credentials.
type DriveService interface {
	Save(ctx context.Context, ownerID uint64, request drive.SaveRequest) (drive.SaveResult, error)
	ListFiles(ctx context.Context, ownerID uint64) ([]letters.Letter, error)
	Authorize(ctx context.Context, ownerID uint64, code string) (users.User, error)
	ConsentURL(ownerID uint64) drive.Consent
}

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Dependencies lists everything the HTTP handler needs. GoogleVerifier is optional; when
// present, sign-in must carry a verifiable ID token.
type Dependencies struct {
	Users          UserService
	Letters        LetterService
	Drive          DriveService
	Sessions       SessionManager
	GoogleVerifier GoogleVerifier
	Cookie         CookieConfig
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler wires the API routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Letters == nil {
		return nil, errMissingLetterService
	}
	if deps.Drive == nil {
		return nil, errMissingDriveService
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookie := deps.Cookie
	if strings.TrimSpace(cookie.Name) == "" {
		cookie.Name = defaultCookieName
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		users:    deps.Users,
		letters:  deps.Letters,
		drive:    deps.Drive,
		sessions: deps.Sessions,
		verifier: deps.GoogleVerifier,
		cookie:   cookie,
		logger:   logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, prefix := range []string{"/api", "/auth"} {
		router.POST(prefix+"/login", handler.handleLogin)
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/api/logout", handler.handleLogout)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/api/user", handler.handleCurrentUser)
	protected.GET("/auth/me", handler.handleCurrentUser)

	protected.GET("/api/letters", handler.handleListLetters)
	protected.POST("/api/letters", handler.handleCreateLetter)
	protected.GET("/api/letters/:id", handler.handleGetLetter)
	protected.PATCH("/api/letters/:id", handler.handleUpdateLetter)
	protected.DELETE("/api/letters/:id", handler.handleDeleteLetter)

	protected.POST("/api/drive/save", handler.handleDriveSave)
	protected.GET("/api/drive/files", handler.handleDriveFiles)
	protected.POST("/api/drive/authorize", handler.handleDriveAuthorize)
	protected.GET("/api/drive/authorize-url", handler.handleDriveConsentURL)

	protected.GET("/api/editor/commands", handler.handleEditorCommands)
	protected.POST("/api/editor/apply", handler.handleEditorApply)

	return router, nil
}

type httpHandler struct {
	users    UserService
	letters  LetterService
	drive    DriveService
	sessions SessionManager
	verifier GoogleVerifier
	cookie   CookieConfig
	logger   *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{defaultAllowedOrigin}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
