package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/skpttrack/tracker/internal/models"
	"github.com/skpttrack/tracker/internal/reports"
)

type ReportHandler struct {
	Aggregator *reports.Aggregator
}

type computeRequest struct {
	CampaignID  string `json:"campaign_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// Compute aggregates a campaign's events over whole UTC days and stores the
// result, replacing any earlier report for the same period.
func (h *ReportHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	period, err := reports.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.Aggregator.Compute(r.Context(), CurrentUser(r.Context()).ID, req.CampaignID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.Aggregator.List(r.Context(), CurrentUser(r.Context()).ID, reports.ListOptions{
		CampaignID: q.Get("campaign"),
		Start:      q.Get("start"),
		End:        q.Get("end"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": list})
}

func (h *ReportHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := reports.ParsePeriod(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dims, err := h.Aggregator.Breakdown(r.Context(), CurrentUser(r.Context()).ID, q.Get("campaign"), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id":  q.Get("campaign"),
		"period_start": q.Get("start"),
		"period_end":   q.Get("end"),
		"dimensions":   dims,
	})
}
