package web

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	uploadStore "coachportal/internal/adapters/storage/upload"
)

// maxUploadBytes caps profile photos and exercise attachments.
const maxUploadBytes = 10 << 20

// handleUploadCreate stores a multipart file in the bucket and records
// its metadata. Only signed-in active members may upload.
func (h *handlers) handleUploadCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerProfile(r)
	if !ok {
		jsonMessage(w, http.StatusUnauthorized, "sign in first")
		return
	}
	if !caller.IsActive() {
		jsonMessage(w, http.StatusForbidden, "active membership required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonMessage(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	id := uuid.New().String()
	key := "uploads/" + id + filepath.Ext(header.Filename)
	contentType := header.Header.Get("Content-Type")

	if err := h.deps.ObjectStore.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		internalError(w, err)
		return
	}

	entity := uploadStore.Upload{
		ID:          id,
		UploaderID:  caller.ID,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   header.Size,
		PublicURL:   h.deps.ObjectStore.PublicURL(key),
		CreatedAt:   timeNow().UTC(),
	}
	if err := h.deps.UploadStore.Insert(r.Context(), entity); err != nil {
		// Roll the object back so the bucket does not hold orphans.
		_ = h.deps.ObjectStore.Delete(r.Context(), key)
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        entity.ID,
		"objectKey": entity.ObjectKey,
		"publicUrl": entity.PublicURL,
		"sizeBytes": entity.SizeBytes,
	})
}

func (h *handlers) handleUploadList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerProfile(r)
	if !ok {
		jsonMessage(w, http.StatusUnauthorized, "sign in first")
		return
	}

	uploads, err := h.deps.UploadStore.ListByUploader(r.Context(), caller.ID)
	if err != nil {
		internalError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(uploads))
	for _, u := range uploads {
		payload = append(payload, map[string]any{
			"id":        u.ID,
			"objectKey": u.ObjectKey,
			"publicUrl": u.PublicURL,
			"sizeBytes": u.SizeBytes,
			"createdAt": u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": payload})
}

func (h *handlers) handleUploadDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.callerProfile(r)
	if !ok {
		jsonMessage(w, http.StatusUnauthorized, "sign in first")
		return
	}

	id := r.PathValue("id")
	entity, err := h.deps.UploadStore.GetByID(r.Context(), id)
	if errors.Is(err, uploadStore.ErrNotFound) {
		jsonMessage(w, http.StatusNotFound, "upload not found")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	// Owners and administrators only.
	if entity.UploaderID != caller.ID && !caller.IsAdmin() {
		jsonMessage(w, http.StatusForbidden, "not your upload")
		return
	}

	if err := h.deps.ObjectStore.Delete(r.Context(), entity.ObjectKey); err != nil {
		internalError(w, err)
		return
	}
	if err := h.deps.UploadStore.Delete(r.Context(), id); err != nil {
		internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
