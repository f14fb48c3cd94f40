package handler

import (
	"io"
	"net/http"

	"eldercare/backend/api/response"
	"eldercare/backend/internal/pkg/httputils"
)

const WelcomeMessage = "Benvingut a ElderCare API!"

// Root
// @Summary Welcome
// @Description Plain text welcome banner
// @Tags system
// @Produce plain
// @Success 200 {string} string
// @Router / [get]
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, WelcomeMessage)
}

// Ping
// @Summary Ping the server
// @Description Liveness check
// @Tags system
// @Produce json
// @Success 200 {object} response.MessageResponse
// @Router /ping [get]
func Ping(w http.ResponseWriter, r *http.Request) {
	httputils.ResponseJSON(w, http.StatusOK, response.MessageResponse{Message: "pong"})
}
