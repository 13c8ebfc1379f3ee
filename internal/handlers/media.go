package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autexline/api/internal/domain"
	"github.com/autexline/api/internal/platform/auth"
	"github.com/autexline/api/internal/platform/httpx"
	"github.com/autexline/api/internal/platform/storage"
)

const (
	maxImageUploads = 10

	imageFolder = "products"
	videoFolder = "videos"
)

// MediaUploader stores uploaded objects and removes them by name.
type MediaUploader interface {
	Upload(ctx context.Context, folder, contentType string, r io.Reader) (storage.MediaObject, error)
	Delete(ctx context.Context, name string) error
}

// MediaHandlers exposes the listing media upload endpoints.
type MediaHandlers struct {
	authn  *auth.Authenticator
	images MediaUploader
	videos MediaUploader
}

// NewMediaHandlers constructs handlers over the configured uploaders.
func NewMediaHandlers(authn *auth.Authenticator, images, videos MediaUploader) *MediaHandlers {
	return &MediaHandlers{
		authn:  authn,
		images: images,
		videos: videos,
	}
}

// Routes wires the /media endpoints onto the provided router.
func (h *MediaHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(domain.RoleDealer, domain.RoleAgent, domain.RoleAdmin))
	}
	r.Post("/images", h.uploadImages)
	r.Post("/video", h.uploadVideo)
	r.Delete("/*", h.deleteMedia)
}

func (h *MediaHandlers) uploadImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reader, err := r.MultipartReader()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart form data is required", http.StatusBadRequest))
		return
	}

	var uploads []mediaPayload
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed multipart payload", http.StatusBadRequest))
			return
		}
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if len(uploads) >= maxImageUploads {
			_ = part.Close()
			httpx.WriteError(ctx, w, httpx.NewError("too_many_files", "too many files in one request", http.StatusBadRequest))
			return
		}

		object, err := h.uploadPart(ctx, h.images, imageFolder, part)
		if err != nil {
			writeUploadError(ctx, w, err)
			return
		}
		uploads = append(uploads, buildMediaPayload(object))
	}

	if len(uploads) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one file is required", http.StatusBadRequest))
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"uploads": uploads})
}

func (h *MediaHandlers) uploadVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reader, err := r.MultipartReader()
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart form data is required", http.StatusBadRequest))
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed multipart payload", http.StatusBadRequest))
			return
		}
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}

		object, err := h.uploadPart(ctx, h.videos, videoFolder, part)
		if err != nil {
			writeUploadError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, map[string]any{"upload": buildMediaPayload(object)})
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "a video file is required", http.StatusBadRequest))
}

func (h *MediaHandlers) deleteMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := strings.Trim(chi.URLParam(r, "*"), "/")
	if name == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "an object name is required", http.StatusBadRequest))
		return
	}

	uploader := h.images
	if strings.HasPrefix(name, videoFolder+"/") {
		uploader = h.videos
	}
	if err := uploader.Delete(ctx, name); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("delete_failed", "media delete failed", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"deleted": name})
}

func (h *MediaHandlers) uploadPart(ctx context.Context, uploader MediaUploader, folder string, part *multipart.Part) (storage.MediaObject, error) {
	defer func() {
		_ = part.Close()
	}()
	contentType := part.Header.Get("Content-Type")
	return uploader.Upload(ctx, folder, contentType, part)
}

type mediaPayload struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func buildMediaPayload(object storage.MediaObject) mediaPayload {
	return mediaPayload{
		Name:        object.Name,
		URL:         object.URL,
		ContentType: object.ContentType,
		Size:        object.Size,
	}
}

func writeUploadError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case storage.IsContentTypeDenied(err):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_media_type", err.Error(), http.StatusUnsupportedMediaType))
	case storage.IsTooLarge(err):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("upload_failed", "media upload failed", http.StatusInternalServerError))
	}
}
