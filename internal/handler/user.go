package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"eldercare/backend/internal/pkg/httputils"
	"eldercare/backend/internal/service"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	userService service.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.createUser).Methods("POST", "OPTIONS")
	router.HandleFunc("/users", h.listUsers).Methods("GET", "OPTIONS")
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// @Summary Create user
// @Description Register a user record
// @ID create-user
// @Tags users
// @Accept json
// @Produce json
// @Param userData body CreateUserRequest true "User data"
// @Success 201 {object} model.User
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /users [post]
func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var request CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Format de petició invàlid")
		return
	}
	r.Body.Close()

	user, err := h.userService.CreateUser(r.Context(), request.Name, request.Email)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			httputils.ResponseError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create user", "error", err)
		httputils.ResponseError(w, http.StatusInternalServerError, "Error en crear l'usuari")
		return
	}

	httputils.ResponseJSON(w, http.StatusCreated, user)
}

// @Summary List users
// @ID list-users
// @Tags users
// @Produce json
// @Success 200 {array} model.User
// @Failure 500 {object} response.ErrorResponse
// @Router /users [get]
func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list users", "error", err)
		httputils.ResponseError(w, http.StatusInternalServerError, "Error en obtenir els usuaris")
		return
	}
	httputils.ResponseJSON(w, http.StatusOK, users)
}
