package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/xid"
)

const htmlContentType = "text/html; charset=utf-8"

// minioAPI is the subset of *minio.Client the bucket uploader needs.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// BucketConfig configures an S3-compatible export target.
type BucketConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// BucketUploader writes letters as HTML objects into an S3-compatible bucket.
type BucketUploader struct {
	api     minioAPI
	bucket  string
	baseURL *url.URL
}

// NewBucketUploader dials the object store described by cfg and ensures the bucket exists.
func NewBucketUploader(ctx context.Context, cfg BucketConfig) (*BucketUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("drive: create object store client: %w", err)
	}
	if strings.TrimSpace(cfg.PublicBaseURL) == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicBaseURL = scheme + "://" + cfg.Endpoint
	}
	return newBucketUploaderWithAPI(ctx, client, cfg.Bucket, cfg.PublicBaseURL)
}

func newBucketUploaderWithAPI(ctx context.Context, api minioAPI, bucket, publicBaseURL string) (*BucketUploader, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("drive: bucket name required")
	}
	baseURL, err := url.Parse(strings.TrimSpace(publicBaseURL))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("drive: invalid public base url %q", publicBaseURL)
	}

	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("drive: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("drive: create bucket %s: %w", bucket, err)
		}
	}
	return &BucketUploader{api: api, bucket: bucket, baseURL: baseURL}, nil
}

func (u *BucketUploader) Upload(ctx context.Context, document Document) (RemoteFile, error) {
	key := objectKey(document)
	body := strings.NewReader(document.Content)
	_, err := u.api.PutObject(ctx, u.bucket, key, body, int64(body.Len()), minio.PutObjectOptions{
		ContentType: htmlContentType,
		UserMetadata: map[string]string{
			"title":                  document.Title,
			"convert-to-google-docs": strconv.FormatBool(document.ConvertToGoogleDocs),
		},
	})
	if err != nil {
		return RemoteFile{}, fmt.Errorf("drive: put object %s: %w", key, err)
	}
	return RemoteFile{ID: key, URL: u.baseURL.JoinPath(u.bucket, key).String()}, nil
}

func objectKey(document Document) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(document.FileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "letter"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".html") {
		name += ".html"
	}
	return path.Join("letters", strconv.FormatUint(document.OwnerID, 10), xid.New().String(), name)
}
