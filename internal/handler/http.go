package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/connectwithme/relay/internal/health"
	"github.com/connectwithme/relay/internal/model"
	"github.com/connectwithme/relay/internal/relay"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	service *relay.Service
	checker *health.Checker
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(service *relay.Service, checker *health.Checker) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		checker: checker,
	}
}

// SetupRoutes sets up HTTP routes
func (h *HTTPHandler) SetupRoutes(r *mux.Router) {
	r.Handle("/health", h.checker.HTTPHandler()).Methods("GET")
	r.HandleFunc("/status", h.handleStatus).Methods("GET")
	r.HandleFunc("/presence", h.handlePresence).Methods("GET")
	r.HandleFunc("/internal/events", h.handleIngest).Methods("POST")
}

// handleStatus handles status check requests
func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	connections, channels, online := h.service.Counts()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": connections,
		"channels":    channels,
		"online":      online,
		"timestamp":   time.Now().UnixNano() / int64(time.Millisecond),
	})
}

// handlePresence returns the current presence snapshot. Read-only
// convenience for the REST layer; clients get theirs over the socket.
func (h *HTTPHandler) handlePresence(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"online": h.service.Presence(),
	})
}

// handleIngest accepts chat events pushed by the REST layer and feeds them
// into the fan-out router. Same envelope shape as the socket.
func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var env model.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}

	if err := h.service.Ingest(env); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
