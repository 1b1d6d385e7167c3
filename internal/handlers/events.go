package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/skpttrack/tracker/internal/apperr"
	"github.com/skpttrack/tracker/internal/models"
)

// EventHandler lists recent events together with their delivery state.
type EventHandler struct {
	DB *sql.DB
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	status := models.DeliveryStatus(q.Get("status"))
	switch status {
	case "", models.StatusPending, models.StatusSuccess, models.StatusFailed:
	default:
		jsonError(w, "status must be pending, success or failed", http.StatusBadRequest)
		return
	}

	events, err := models.ListEvents(r.Context(), h.DB, models.EventFilter{
		UserID:     CurrentUser(r.Context()).ID,
		CampaignID: q.Get("campaign"),
		Status:     status,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, r, apperr.Store("list events", err))
		return
	}
	if events == nil {
		events = []models.TrackingEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
