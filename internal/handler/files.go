package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"eldercare/backend/internal/pkg/httputils"
	"eldercare/backend/internal/pkg/storage"

	"github.com/gorilla/mux"
)

// FileHandler serves blobs of the local backend behind signed tokens.
type FileHandler struct {
	store  *storage.LocalStore
	logger *slog.Logger
}

func NewFileHandler(store *storage.LocalStore, logger *slog.Logger) *FileHandler {
	return &FileHandler{store: store, logger: logger}
}

func (h *FileHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/files/{key:.+}", h.download).Methods("GET", "HEAD")
}

// @Summary Download blob
// @Description Stream a stored environment bundle (local backend)
// @ID download-file
// @Tags files
// @Produce octet-stream
// @Param key path string true "Storage key"
// @Param token query string true "Download token"
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /files/{key} [get]
func (h *FileHandler) download(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := h.store.Verify(r.URL.Query().Get("token"), key); err != nil {
		httputils.ResponseError(w, http.StatusForbidden, "Enllaç de descàrrega invàlid")
		return
	}

	rc, err := h.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputils.ResponseError(w, http.StatusNotFound, "Fitxer no trobat")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to open blob", "storage_key", key, "error", err)
		httputils.ResponseError(w, http.StatusInternalServerError, "Error en llegir el fitxer")
		return
	}
	defer rc.Close()

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(key), time.Time{}, rs)
		return
	}
	w.Header().Set("Content-Type", defaultContentType)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "blob stream interrupted", "storage_key", key, "error", err)
	}
}
