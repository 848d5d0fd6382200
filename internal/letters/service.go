package letters

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/inkwell/backend/internal/richtext"
	"go.uber.org/zap"
)

var (
	errMissingRepository = errors.New("repository is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable dotted code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "letters.service.new"
	opList         = "letters.list"
	opListExported = "letters.list_exported"
	opGet          = "letters.get"
	opCreate       = "letters.create"
	opUpdate       = "letters.update"
	opDelete       = "letters.delete"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ServiceConfig describes the dependencies of the letter service.
type ServiceConfig struct {
	Repository Repository
	Logger     *zap.Logger
}

// Service enforces validation and single-owner access on top of a Repository.
type Service struct {
	repository Repository
	logger     *zap.Logger
}

// NewService validates its dependencies and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, newServiceError(opServiceNew, "missing_repository", errMissingRepository)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{repository: cfg.Repository, logger: logger}, nil
}

// CreateInput is the client-supplied payload for a new letter. Content is required.
type CreateInput struct {
	Title   *string
	Content *string
}

// List returns every letter owned by the caller.
func (s *Service) List(ctx context.Context, ownerID uint64) ([]Letter, error) {
	result, err := s.repository.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logError(opList, "query_failed", err, zap.Uint64("user_id", ownerID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return result, nil
}

// ListExported returns the caller's letters that carry an external storage identifier.
func (s *Service) ListExported(ctx context.Context, ownerID uint64) ([]Letter, error) {
	all, err := s.repository.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logError(opListExported, "query_failed", err, zap.Uint64("user_id", ownerID))
		return nil, newServiceError(opListExported, "query_failed", err)
	}
	exported := make([]Letter, 0, len(all))
	for _, letter := range all {
		if letter.Exported() {
			exported = append(exported, letter)
		}
	}
	return exported, nil
}

// Get returns the letter when it exists and belongs to the caller. Existence is checked
// before ownership, so another owner's letter yields ErrForbidden rather than ErrLetterNotFound.
func (s *Service) Get(ctx context.Context, ownerID, letterID uint64) (Letter, error) {
	return s.owned(ctx, opGet, ownerID, letterID)
}

// Create stores a new letter owned by the caller.
func (s *Service) Create(ctx context.Context, ownerID uint64, input CreateInput) (Letter, error) {
	if input.Content == nil {
		return Letter{}, newServiceError(opCreate, "invalid_payload", &ValidationError{Field: "content", Message: "content is required"})
	}
	if err := validateContent(*input.Content); err != nil {
		return Letter{}, newServiceError(opCreate, "invalid_payload", err)
	}
	title := ""
	if input.Title != nil {
		title = *input.Title
		if err := validateTitle(title); err != nil {
			return Letter{}, newServiceError(opCreate, "invalid_payload", err)
		}
	}

	letter, err := s.repository.Create(ctx, Draft{Title: title, Content: *input.Content, OwnerID: ownerID})
	if err != nil {
		s.logError(opCreate, "insert_failed", err, zap.Uint64("user_id", ownerID))
		return Letter{}, newServiceError(opCreate, "insert_failed", err)
	}
	s.logger.Debug("letter created", zap.Uint64("user_id", ownerID), zap.Uint64("letter_id", letter.ID))
	return letter, nil
}

// Update applies the supplied fields to a letter owned by the caller. Existence and
// ownership are checked before the patch is validated.
func (s *Service) Update(ctx context.Context, ownerID, letterID uint64, patch Patch) (Letter, error) {
	if _, err := s.owned(ctx, opUpdate, ownerID, letterID); err != nil {
		return Letter{}, err
	}
	if err := validatePatch(patch); err != nil {
		return Letter{}, newServiceError(opUpdate, "invalid_payload", err)
	}
	letter, err := s.repository.Update(ctx, letterID, patch)
	if errors.Is(err, ErrLetterNotFound) {
		return Letter{}, newServiceError(opUpdate, "not_found", err)
	}
	if err != nil {
		s.logError(opUpdate, "update_failed", err, zap.Uint64("user_id", ownerID), zap.Uint64("letter_id", letterID))
		return Letter{}, newServiceError(opUpdate, "update_failed", err)
	}
	return letter, nil
}

// Delete removes a letter owned by the caller.
func (s *Service) Delete(ctx context.Context, ownerID, letterID uint64) error {
	if _, err := s.owned(ctx, opDelete, ownerID, letterID); err != nil {
		return err
	}
	if err := s.repository.Delete(ctx, letterID); err != nil {
		s.logError(opDelete, "delete_failed", err, zap.Uint64("user_id", ownerID), zap.Uint64("letter_id", letterID))
		return newServiceError(opDelete, "delete_failed", err)
	}
	s.logger.Debug("letter deleted", zap.Uint64("user_id", ownerID), zap.Uint64("letter_id", letterID))
	return nil
}

func (s *Service) owned(ctx context.Context, operation string, ownerID, letterID uint64) (Letter, error) {
	letter, err := s.repository.Get(ctx, letterID)
	if errors.Is(err, ErrLetterNotFound) {
		return Letter{}, newServiceError(operation, "not_found", err)
	}
	if err != nil {
		s.logError(operation, "select_failed", err, zap.Uint64("letter_id", letterID))
		return Letter{}, newServiceError(operation, "select_failed", err)
	}
	if letter.UserID != ownerID {
		s.logger.Info("letter access denied",
			zap.String("operation", operation),
			zap.Uint64("user_id", ownerID),
			zap.Uint64("letter_id", letterID))
		return Letter{}, newServiceError(operation, "forbidden", ErrForbidden)
	}
	return letter, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("letters service error", attrs...)
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > maxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", maxTitleLength)}
	}
	return nil
}

func validateContent(content string) error {
	if err := richtext.ValidateContent(content); err != nil {
		var contentErr *richtext.ContentError
		if errors.As(err, &contentErr) {
			return &ValidationError{Field: "content", Message: contentErr.Reason}
		}
		return &ValidationError{Field: "content", Message: err.Error()}
	}
	return nil
}

func validatePatch(patch Patch) error {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return err
		}
	}
	if patch.Content != nil {
		if err := validateContent(*patch.Content); err != nil {
			return err
		}
	}
	return nil
}
