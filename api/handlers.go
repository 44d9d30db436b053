// Package api exposes the message log over plain HTTP, mirroring the shape
// of the history frame.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/domain"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/store"
)

type Handler struct {
	store store.MessageStore
}

func NewHandler(messages store.MessageStore) *Handler {
	return &Handler{store: messages}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/messages", h.listMessages)
	r.Post("/messages", h.createMessage)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.ListAll(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list messages", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to fetch messages"})
		return
	}

	if messages == nil {
		messages = []domain.Message{}
	}

	writeJSON(w, http.StatusOK, messages)
}

type createMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message data"})
		return
	}

	if req.Sender == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message data"})
		return
	}

	msg, err := h.store.Append(r.Context(), req.Sender, req.Content)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to store message", "sender", req.Sender, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store message"})
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
