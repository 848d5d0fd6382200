package letters

import (
	"errors"
	"time"
)

// DefaultTitle is assigned when a letter is created without a title.
const DefaultTitle = "Untitled Letter"

const maxTitleLength = 512

var (
	// ErrLetterNotFound indicates that no letter exists with the requested identifier.
	ErrLetterNotFound = errors.New("letters: letter not found")
	// ErrForbidden indicates that the letter exists but belongs to another user.
	ErrForbidden = errors.New("letters: access denied")
	// ErrInvalidLetter is wrapped by every ValidationError.
	ErrInvalidLetter = errors.New("letters: invalid letter")
)

// Letter is a rich-text document owned by exactly one user.
type Letter struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Title          string    `gorm:"column:title;size:512;not null"`
	Content        string    `gorm:"column:content;type:text;not null"`
	UserID         uint64    `gorm:"column:user_id;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
	GoogleDriveID  *string   `gorm:"column:google_drive_id;size:512"`
	GoogleDriveURL *string   `gorm:"column:google_drive_url;size:2048"`
}

// TableName provides the explicit table binding for GORM.
func (Letter) TableName() string {
	return "letters"
}

// Exported reports whether the letter has been saved to external storage.
func (l Letter) Exported() bool {
	return l.GoogleDriveID != nil && *l.GoogleDriveID != ""
}

// Draft carries the fields of a letter about to be created.
type Draft struct {
	Title   string
	Content string
	OwnerID uint64
}

// Patch lists the fields to change; nil fields are left untouched.
type Patch struct {
	Title          *string
	Content        *string
	GoogleDriveID  *string
	GoogleDriveURL *string
}

func (p Patch) apply(letter Letter) Letter {
	if p.Title != nil {
		letter.Title = *p.Title
	}
	if p.Content != nil {
		letter.Content = *p.Content
	}
	if p.GoogleDriveID != nil {
		letter.GoogleDriveID = cloneString(p.GoogleDriveID)
	}
	if p.GoogleDriveURL != nil {
		letter.GoogleDriveURL = cloneString(p.GoogleDriveURL)
	}
	return letter
}

// ValidationError reports a field-level problem with a letter payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidLetter
}

func timestamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt guarantees that updated-at strictly advances even when the clock does not.
func nextUpdatedAt(previous, now time.Time) time.Time {
	candidate := timestamp(now)
	if !candidate.After(previous) {
		return previous.Add(time.Microsecond)
	}
	return candidate
}

func titleOrDefault(title string) string {
	if title == "" {
		return DefaultTitle
	}
	return title
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
