package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"

	"github.com/autexline/api/internal/platform/config"
)

const publicURLBase = "https://storage.googleapis.com"

var (
	errNilClient          = errors.New("storage: client is required")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errContentTypeMissing = errors.New("storage: content type is required")

	// ErrContentTypeDenied marks uploads with a disallowed content type.
	ErrContentTypeDenied = errors.New("storage: content type not allowed")
	// ErrTooLarge marks uploads exceeding the configured size limit.
	ErrTooLarge = errors.New("storage: upload exceeds size limit")
)

// IsContentTypeDenied reports whether err was caused by a disallowed content type.
func IsContentTypeDenied(err error) bool { return errors.Is(err, ErrContentTypeDenied) }

// IsTooLarge reports whether err was caused by an oversized upload.
func IsTooLarge(err error) bool { return errors.Is(err, ErrTooLarge) }

var defaultAllowedContentTypes = []string{"image/*", "application/pdf"}

// MediaObject describes a stored upload.
type MediaObject struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Uploader writes listing media to a Cloud Storage bucket and returns public URLs.
type Uploader struct {
	client   *storage.Client
	bucket   string
	maxBytes int64
	allowed  []string
	now      func() time.Time
}

// UploaderOption customises uploader behaviour.
type UploaderOption func(*Uploader)

// WithAllowedContentTypes overrides the accepted content types. Entries may use
// a trailing wildcard such as "image/*".
func WithAllowedContentTypes(types ...string) UploaderOption {
	return func(u *Uploader) {
		if len(types) > 0 {
			u.allowed = types
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUploader constructs an Uploader bound to the configured media bucket.
func NewUploader(client *storage.Client, cfg config.StorageConfig, opts ...UploaderOption) (*Uploader, error) {
	if client == nil {
		return nil, errNilClient
	}
	bucket := strings.TrimSpace(cfg.MediaBucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}

	u := &Uploader{
		client:   client,
		bucket:   bucket,
		maxBytes: cfg.MaxUploadBytes,
		allowed:  defaultAllowedContentTypes,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// Upload streams the reader into the bucket under a generated object name and
// returns the resulting public URL.
func (u *Uploader) Upload(ctx context.Context, folder, contentType string, r io.Reader) (MediaObject, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return MediaObject{}, errContentTypeMissing
	}
	if !contentTypeAllowed(contentType, u.allowed) {
		return MediaObject{}, ErrContentTypeDenied
	}

	name := u.objectName(folder, contentType)
	writer := u.client.Bucket(u.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType

	limit := u.maxBytes
	var size int64
	var err error
	if limit > 0 {
		size, err = io.Copy(writer, io.LimitReader(r, limit+1))
	} else {
		size, err = io.Copy(writer, r)
	}
	if err != nil {
		_ = writer.Close()
		return MediaObject{}, fmt.Errorf("storage: write object %s: %w", name, err)
	}
	if limit > 0 && size > limit {
		_ = writer.Close()
		_ = u.Delete(context.WithoutCancel(ctx), name)
		return MediaObject{}, ErrTooLarge
	}
	if err := writer.Close(); err != nil {
		return MediaObject{}, fmt.Errorf("storage: finalize object %s: %w", name, err)
	}

	return MediaObject{
		Name:        name,
		URL:         fmt.Sprintf("%s/%s/%s", publicURLBase, u.bucket, name),
		ContentType: contentType,
		Size:        size,
	}, nil
}

// Delete removes the named object from the bucket. Missing objects are not an error.
func (u *Uploader) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errInvalidObject
	}
	err := u.client.Bucket(u.bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: delete object %s: %w", name, err)
	}
	return nil
}

func (u *Uploader) objectName(folder, contentType string) string {
	id := ulid.Make().String()
	ext := extensionFor(contentType)

	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "uploads"
	}
	datePrefix := u.now().UTC().Format("2006/01")
	return path.Join(folder, datePrefix, strings.ToLower(id)+ext)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			if strings.HasPrefix(normalized, strings.TrimSuffix(candidate, "*")) {
				return true
			}
			continue
		}
		if normalized == candidate {
			return true
		}
	}
	return false
}
