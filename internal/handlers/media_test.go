package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/autexline/api/internal/platform/storage"
)

type fakeUploader struct {
	err     error
	uploads []string
	deleted []string
}

func (f *fakeUploader) Delete(_ context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeUploader) Upload(_ context.Context, folder, contentType string, r io.Reader) (storage.MediaObject, error) {
	if f.err != nil {
		return storage.MediaObject{}, f.err
	}
	data, _ := io.ReadAll(r)
	name := fmt.Sprintf("%s/2024/06/object-%d", folder, len(f.uploads)+1)
	f.uploads = append(f.uploads, name)
	return storage.MediaObject{
		Name:        name,
		URL:         "https://storage.googleapis.com/bucket/" + name,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func newMediaRouter(images, videos MediaUploader) chi.Router {
	h := NewMediaHandlers(newTestAuthenticator(), images, videos)
	return NewRouter(WithMediaRoutes(h.Routes))
}

func multipartBody(t *testing.T, field, contentType string, files ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, content := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="file-%d.bin"`, field, i))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadImagesEndpoint(t *testing.T) {
	images := &fakeUploader{}
	router := newMediaRouter(images, &fakeUploader{})

	body, contentType := multipartBody(t, "images", "image/jpeg", "jpeg-one", "jpeg-two")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer dealer-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(images.uploads) != 2 {
		t.Errorf("uploads = %d, want 2", len(images.uploads))
	}

	var resp struct {
		Uploads []mediaPayload `json:"uploads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Uploads) != 2 || resp.Uploads[0].ContentType != "image/jpeg" {
		t.Errorf("response = %+v", resp)
	}
}

func TestUploadImagesDeniedContentType(t *testing.T) {
	images := &fakeUploader{err: storage.ErrContentTypeDenied}
	router := newMediaRouter(images, &fakeUploader{})

	body, contentType := multipartBody(t, "images", "application/zip", "zip-data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer dealer-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestUploadImagesTooLarge(t *testing.T) {
	images := &fakeUploader{err: storage.ErrTooLarge}
	router := newMediaRouter(images, &fakeUploader{})

	body, contentType := multipartBody(t, "images", "image/png", "png-data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/images", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer dealer-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestUploadVideoEndpoint(t *testing.T) {
	videos := &fakeUploader{}
	router := newMediaRouter(&fakeUploader{}, videos)

	body, contentType := multipartBody(t, "video", "video/mp4", "mp4-data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/video", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer agent-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(videos.uploads) != 1 {
		t.Errorf("uploads = %d, want 1", len(videos.uploads))
	}
}

func TestDeleteMediaRoutesToUploader(t *testing.T) {
	images := &fakeUploader{}
	videos := &fakeUploader{}
	router := newMediaRouter(images, videos)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/media/products/2024/06/object-1.jpg", "dealer-token", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(images.deleted) != 1 || images.deleted[0] != "products/2024/06/object-1.jpg" {
		t.Errorf("images deleted = %v", images.deleted)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/media/videos/2024/06/object-2.mp4", "dealer-token", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(videos.deleted) != 1 {
		t.Errorf("videos deleted = %v", videos.deleted)
	}
}

func TestUploadRequiresMultipart(t *testing.T) {
	router := newMediaRouter(&fakeUploader{}, &fakeUploader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/media/images", "dealer-token", `{"not":"multipart"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRequiresSellerOrAdmin(t *testing.T) {
	router := newMediaRouter(&fakeUploader{}, &fakeUploader{})

	body, contentType := multipartBody(t, "images", "image/png", "png-data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/images", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
