package drive

import (
	"context"
	"fmt"

	"github.com/rs/xid"
)

// Document is the payload handed to external storage.
type Document struct {
	OwnerID             uint64
	Title               string
	Content             string
	FileName            string
	ConvertToGoogleDocs bool
	AccessToken         string
}

// RemoteFile identifies an uploaded document.
type RemoteFile struct {
	ID  string
	URL string
}

// Uploader stores a document remotely and reports where it landed.
type Uploader interface {
	Upload(ctx context.Context, document Document) (RemoteFile, error)
}

// MockUploader fabricates remote identifiers without performing any I/O.
type MockUploader struct{}

// NewMockUploader returns an Uploader that never leaves the process.
func NewMockUploader() *MockUploader {
	return &MockUploader{}
}

func (MockUploader) Upload(ctx context.Context, document Document) (RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return RemoteFile{}, err
	}
	id := xid.New().String()
	if document.ConvertToGoogleDocs {
		return RemoteFile{
			ID:  "file_" + id,
			URL: fmt.Sprintf("https://docs.google.com/document/d/%s", id),
		}, nil
	}
	return RemoteFile{
		ID:  "file_" + id,
		URL: fmt.Sprintf("https://drive.google.com/file/d/%s/view", id),
	}, nil
}
