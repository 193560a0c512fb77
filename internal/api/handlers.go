package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/findingjimoh/android-sms-gateway/internal/repo"
	"github.com/findingjimoh/android-sms-gateway/internal/scheduler"
)

// ConversationsRepo is the read-only view the conversations routes serve.
type ConversationsRepo interface {
	Conversations(ctx context.Context, limit, offset int) ([]repo.ConversationPreview, error)
	Thread(ctx context.Context, phone string, limit, offset int) ([]repo.ThreadMessage, error)
	Recent(ctx context.Context, since int64, limit int) ([]repo.ThreadMessage, error)
}

type Handler struct {
	scheds        []*scheduler.Scheduler
	conversations ConversationsRepo
}

func NewHandler(conversations ConversationsRepo, scheds ...*scheduler.Scheduler) *Handler {
	return &Handler{scheds: scheds, conversations: conversations}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.schedulerStates())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	for _, s := range h.scheds {
		s.Start()
	}
	writeJSON(w, http.StatusOK, h.schedulerStates())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	for _, s := range h.scheds {
		s.Stop()
	}
	writeJSON(w, http.StatusOK, h.schedulerStates())
}

func (h *Handler) schedulerStates() map[string]bool {
	states := make(map[string]bool, len(h.scheds))
	for _, s := range h.scheds {
		states[s.Name()] = s.IsRunning()
	}
	return states
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.conversations.Conversations(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	phone := r.PathValue("phone")
	if phone == "" {
		http.Error(w, "phone number is required", http.StatusBadRequest)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.conversations.Thread(r.Context(), phone, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListReceived(w http.ResponseWriter, r *http.Request) {
	rawSince := r.URL.Query().Get("since")
	since, err := strconv.ParseInt(rawSince, 10, 64)
	if err != nil {
		http.Error(w, "parameter 'since' is required (unix timestamp in millis)", http.StatusBadRequest)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)

	items, err := h.conversations.Recent(r.Context(), since, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
