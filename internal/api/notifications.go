package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/notifications"
	"github.com/quantumlife/hearth/internal/notify"
)

// NotificationsAPI handles toast history endpoints
type NotificationsAPI struct {
	service *notifications.Service
}

// NewNotificationsAPI creates a new notifications API
func NewNotificationsAPI(service *notifications.Service) *NotificationsAPI {
	return &NotificationsAPI{service: service}
}

// handleGetNotifications returns toasts with optional filters
func (api *NotificationsAPI) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	filter := notifications.NotificationFilter{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if sev := r.URL.Query().Get("severity"); sev != "" {
		filter.Severity = notify.Severity(sev)
		if !filter.Severity.Valid() {
			respondError(w, core.NewError(fmt.Sprintf("invalid severity %q", sev), core.ErrorValidation, nil))
			return
		}
	}
	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}

	notifs, err := api.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if notifs == nil {
		notifs = []*notifications.Notification{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"notifications": notifs,
		"count":         len(notifs),
	})
}

// handleGetNotification returns a single toast
func (api *NotificationsAPI) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := api.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// handleCreateNotification records a toast and pushes it to subscribers
func (api *NotificationsAPI) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var t notify.Toast
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		respondError(w, core.WrapError(err, core.ErrorValidation, "invalid request body"))
		return
	}

	n, err := api.service.Create(r.Context(), t)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// handleDismissNotification dismisses a toast
func (api *NotificationsAPI) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := api.service.Dismiss(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "dismissed", "id": id})
}

// handleDismissAll dismisses every active toast
func (api *NotificationsAPI) handleDismissAll(w http.ResponseWriter, r *http.Request) {
	count, err := api.service.DismissAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "dismissed", "count": count})
}

// handleGetActiveCount returns the number of toasts still shown
func (api *NotificationsAPI) handleGetActiveCount(w http.ResponseWriter, r *http.Request) {
	count, err := api.service.ActiveCount(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// handleGetNotificationStats returns toast statistics
func (api *NotificationsAPI) handleGetNotificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.service.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
