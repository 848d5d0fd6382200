package drive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/letters"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/richtext"
	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/users"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const savedMessage = "Letter saved to Google Drive successfully"

var (
	// ErrNoDriveAccess indicates that the caller has no stored Drive credentials.
	ErrNoDriveAccess = errors.New("drive: user has no valid Google Drive access")
	// ErrInvalidRequest is wrapped by every ValidationError.
	ErrInvalidRequest = errors.New("drive: invalid request")
	// ErrUploadFailed wraps failures reported by the Uploader.
	ErrUploadFailed = errors.New("drive: upload failed")
)

// ValidationError reports a field-level problem with a drive request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// UserDirectory is the slice of the user service the drive flows need.
type UserDirectory interface {
	Get(ctx context.Context, userID uint64) (users.User, error)
	GrantDriveAccess(ctx context.Context, userID uint64, credentials users.Credentials) (users.User, error)
}

// LetterStore is the slice of the letter service the drive flows need.
type LetterStore interface {
	Get(ctx context.Context, ownerID, letterID uint64) (letters.Letter, error)
	Update(ctx context.Context, ownerID, letterID uint64, patch letters.Patch) (letters.Letter, error)
	ListExported(ctx context.Context, ownerID uint64) ([]letters.Letter, error)
}

// SaveRequest is the client payload for exporting a letter.
type SaveRequest struct {
	LetterID            string
	Title               string
	Content             string
	FileName            string
	ConvertToGoogleDocs bool
}

// SaveResult reports the outcome of an export.
type SaveResult struct {
	Success bool
	FileID  string
	FileURL string
	Message string
}

// ServiceConfig describes the dependencies of the drive service.
type ServiceConfig struct {
	Users     UserDirectory
	Letters   LetterStore
	Uploader  Uploader
	Exchanger CredentialExchanger
	Logger    *zap.Logger
}

// Service exports letters through an Uploader and manages Drive credentials.
type Service struct {
	users     UserDirectory
	letters   LetterStore
	uploader  Uploader
	exchanger CredentialExchanger
	logger    *zap.Logger
}

// NewService validates its dependencies and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, fmt.Errorf("drive: user directory required")
	}
	if cfg.Letters == nil {
		return nil, fmt.Errorf("drive: letter store required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("drive: uploader required")
	}
	exchanger := cfg.Exchanger
	if exchanger == nil {
		exchanger = MockExchanger{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:     cfg.Users,
		letters:   cfg.Letters,
		uploader:  cfg.Uploader,
		exchanger: exchanger,
		logger:    logger,
	}, nil
}

// Save uploads the document and, when the request names a stored letter, records the remote
// identifier on it. The named letter must belong to the caller.
func (s *Service) Save(ctx context.Context, ownerID uint64, request SaveRequest) (SaveResult, error) {
	if err := validateSave(request); err != nil {
		return SaveResult{}, err
	}
	accessToken, err := s.accessToken(ctx, ownerID)
	if err != nil {
		return SaveResult{}, err
	}

	letterID, linked := storedLetterID(request.LetterID)
	if linked {
		if _, err := s.letters.Get(ctx, ownerID, letterID); err != nil {
			return SaveResult{}, err
		}
	}

	remote, err := s.uploader.Upload(ctx, Document{
		OwnerID:             ownerID,
		Title:               request.Title,
		Content:             request.Content,
		FileName:            request.FileName,
		ConvertToGoogleDocs: request.ConvertToGoogleDocs,
		AccessToken:         accessToken,
	})
	if err != nil {
		s.logger.Error("drive upload failed", zap.Uint64("user_id", ownerID), zap.Error(err))
		return SaveResult{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if linked {
		if _, err := s.letters.Update(ctx, ownerID, letterID, letters.Patch{
			GoogleDriveID:  &remote.ID,
			GoogleDriveURL: &remote.URL,
		}); err != nil {
			s.logger.Error("failed to record export on letter",
				zap.Uint64("user_id", ownerID),
				zap.Uint64("letter_id", letterID),
				zap.String("file_id", remote.ID),
				zap.Error(err))
			return SaveResult{}, err
		}
	}

	s.logger.Info("letter exported",
		zap.Uint64("user_id", ownerID),
		zap.String("file_id", remote.ID),
		zap.Bool("linked", linked))
	return SaveResult{Success: true, FileID: remote.ID, FileURL: remote.URL, Message: savedMessage}, nil
}

// ListFiles returns the caller's letters that have been exported.
func (s *Service) ListFiles(ctx context.Context, ownerID uint64) ([]letters.Letter, error) {
	if _, err := s.accessToken(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.letters.ListExported(ctx, ownerID)
}

// Consent is the page a user visits to grant Drive access and the state it round-trips.
type Consent struct {
	URL   string
	State string
}

// ConsentURL starts a Drive consent flow for the owner with a fresh state value, which the
// caller checks against the state returned to its callback.
func (s *Service) ConsentURL(ownerID uint64) Consent {
	state := xid.New().String()
	s.logger.Debug("drive consent requested", zap.Uint64("user_id", ownerID), zap.String("state", state))
	return Consent{URL: s.exchanger.AuthURL(state), State: state}
}

// Authorize exchanges an authorization code and stores the resulting credentials.
func (s *Service) Authorize(ctx context.Context, ownerID uint64, code string) (users.User, error) {
	if strings.TrimSpace(code) == "" {
		return users.User{}, &ValidationError{Field: "code", Message: "authorization code is required"}
	}
	credentials, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("drive authorization failed", zap.Uint64("user_id", ownerID), zap.Error(err))
		return users.User{}, &ValidationError{Field: "code", Message: "authorization code was rejected"}
	}
	return s.users.GrantDriveAccess(ctx, ownerID, credentials)
}

func (s *Service) accessToken(ctx context.Context, ownerID uint64) (string, error) {
	user, err := s.users.Get(ctx, ownerID)
	if errors.Is(err, users.ErrUserNotFound) {
		return "", ErrNoDriveAccess
	}
	if err != nil {
		return "", err
	}
	if !user.HasDriveAccess() {
		return "", ErrNoDriveAccess
	}
	return *user.AccessToken, nil
}

// storedLetterID reports whether raw names a stored letter. Non-numeric and zero values
// export a document that is not linked to any letter.
func storedLetterID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 63)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// numericOutOfRange reports digit-only ids that overflow the signed 64-bit key column.
func numericOutOfRange(raw string) bool {
	_, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 63)
	var numErr *strconv.NumError
	return errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange)
}

func validateSave(request SaveRequest) error {
	if strings.TrimSpace(request.LetterID) == "" {
		return &ValidationError{Field: "letterId", Message: "Letter ID is required"}
	}
	if numericOutOfRange(request.LetterID) {
		return &ValidationError{Field: "letterId", Message: "Letter ID is out of range"}
	}
	if strings.TrimSpace(request.Title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if strings.TrimSpace(request.FileName) == "" {
		return &ValidationError{Field: "fileName", Message: "File name is required"}
	}
	if err := richtext.ValidateContent(request.Content); err != nil {
		var contentErr *richtext.ContentError
		if errors.As(err, &contentErr) {
			return &ValidationError{Field: "content", Message: contentErr.Reason}
		}
		return &ValidationError{Field: "content", Message: err.Error()}
	}
	return nil
}
