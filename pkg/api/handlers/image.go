package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ggnet/ggnetd/pkg/images"
	"github.com/ggnet/ggnetd/pkg/models"
)

// ImageHandler exposes the Image Store's upload/CRUD surface.
type ImageHandler struct {
	images    *images.Store
	jwtSecret []byte
}

// NewImageHandler creates an ImageHandler.
func NewImageHandler(imgs *images.Store, jwtSecret []byte) *ImageHandler {
	return &ImageHandler{images: imgs, jwtSecret: jwtSecret}
}

// Upload handles POST /api/v1/images: streams the request body to disk and
// inserts the Image row. Declared attributes travel as query parameters
// since the body is the raw upload stream, not a JSON envelope.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	displayName := q.Get("display_name")
	originalFileName := q.Get("file_name")
	if displayName == "" || originalFileName == "" {
		BadRequest(w, "display_name and file_name query parameters are required")
		return
	}
	imageType := models.ImageType(q.Get("image_type"))
	if imageType == "" {
		imageType = models.ImageTypeSystem
	}

	img, err := h.images.AcceptUpload(r.Context(), images.UploadMetadata{
		DisplayName:      displayName,
		OriginalFileName: originalFileName,
		ImageType:        imageType,
		CreatedByID:      actorFromRequest(r, h.jwtSecret),
	}, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONCreated(w, img)
}

// Get handles GET /api/v1/images/{id}.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	img, err := h.images.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, img)
}

// List handles GET /api/v1/images, optionally filtered by ?status=.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	imgs, err := h.images.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, imgs)
}

// updateImageRequest is the JSON body for PUT /api/v1/images/{id}.
type updateImageRequest struct {
	DisplayName *string `json:"display_name"`
	ImageType   *string `json:"image_type"`
}

// Update handles PUT /api/v1/images/{id}: metadata-only patch.
func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	img, err := h.images.UpdateMetadata(r.Context(), chi.URLParam(r, "id"), images.MetadataPatch{
		DisplayName: req.DisplayName,
		ImageType:   req.ImageType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, img)
}

// Delete handles DELETE /api/v1/images/{id}.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.images.SoftDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	WriteNoContent(w)
}
