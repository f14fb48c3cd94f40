package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"eldercare/backend/internal/model"
	"eldercare/backend/internal/pkg/httputils"
	"eldercare/backend/internal/service"

	"github.com/gorilla/mux"
)

const (
	defaultContentType = "application/octet-stream"
	// Parts above this are spooled to temp files by mime/multipart.
	multipartMemory = 32 << 20
)

type EnvironmentHandler struct {
	ingestion      service.IngestionService
	envService     service.EnvironmentService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewEnvironmentHandler(ingestion service.IngestionService, envService service.EnvironmentService, maxUploadBytes int64, logger *slog.Logger) *EnvironmentHandler {
	return &EnvironmentHandler{
		ingestion:      ingestion,
		envService:     envService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func (h *EnvironmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/upload_entorn", h.uploadEnvironment).Methods("POST", "OPTIONS")
	router.HandleFunc("/entorns", h.listEnvironments).Methods("GET", "OPTIONS")
}

// @Summary Upload environment
// @Description Store a packaged environment and record its metadata
// @ID upload-entorn
// @Tags environments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Environment bundle"
// @Param name formData string false "Display name"
// @Param description formData string false "Description"
// @Success 201 {object} model.Environment
// @Failure 400 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /upload_entorn [post]
func (h *EnvironmentHandler) uploadEnvironment(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputils.ResponseError(w, http.StatusRequestEntityTooLarge, "El fitxer és massa gran")
			return
		}
		h.logger.WarnContext(r.Context(), "failed to parse upload", "error", err)
		httputils.ResponseError(w, http.StatusBadRequest, "Format de petició invàlid")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, service.ReasonMissingFile.Message())
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "No s'ha pogut llegir el fitxer")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	env, err := h.ingestion.Ingest(r.Context(), model.UploadDescriptor{
		Filename:    header.Filename,
		ContentType: contentType,
		Payload:     payload,
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	})
	if err != nil {
		var ie *service.IngestionError
		if !errors.As(err, &ie) {
			httputils.ResponseError(w, http.StatusInternalServerError, "Error en processar l'entorn")
			return
		}
		status := http.StatusInternalServerError
		if ie.Reason == service.ReasonMissingFile {
			status = http.StatusBadRequest
		}
		httputils.ResponseError(w, status, ie.Reason.Message())
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, env)
}

// @Summary List environments
// @Description All environment records in upload order
// @ID list-entorns
// @Tags environments
// @Produce json
// @Success 200 {array} model.Environment
// @Failure 500 {object} response.ErrorResponse
// @Router /entorns [get]
func (h *EnvironmentHandler) listEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := h.envService.ListEnvironments(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list environments", "error", err)
		httputils.ResponseError(w, http.StatusInternalServerError, "Error en obtenir els entorns")
		return
	}
	httputils.ResponseJSON(w, http.StatusOK, envs)
}
