package handlers

import (
	"encoding/json"
	"mime"
	"net"
	"net/http"

	"github.com/skpttrack/tracker/internal/analytics"
	"github.com/skpttrack/tracker/internal/ingest"
)

const maxTrackBody = 16 << 10

// TrackHandler is the public ingest endpoint. The link token in the request
// is the only credential.
type TrackHandler struct {
	Pipeline *ingest.Pipeline
}

type trackBody struct {
	Token      string          `json:"token"`
	Event      string          `json:"event"`
	EventType  string          `json:"event_type"`
	Campaign   string          `json:"campaign"`
	CampaignID string          `json:"campaign_id"`
	Value      json.RawMessage `json:"value"`
	SaleValue  json.RawMessage `json:"sale_value"`
	EventID    string          `json:"eid"`
}

func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTrackBody)

	req, err := parseTrackRequest(r)
	if err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// chi's RealIP middleware already sets RemoteAddr from X-Forwarded-For/X-Real-IP
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	req.Client = analytics.Client{IP: ip, UserAgent: r.UserAgent(), Referer: r.Referer()}

	res, err := h.Pipeline.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "accepted",
		"event_id": res.Event.UID,
	})
}

// parseTrackRequest accepts query parameters, form posts and JSON bodies.
func parseTrackRequest(r *http.Request) (ingest.Request, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if r.Method == http.MethodPost && ct == "application/json" {
		var b trackBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			return ingest.Request{}, err
		}
		q := r.URL.Query()
		return ingest.Request{
			Token:      first(b.Token, q.Get("token")),
			EventType:  first(b.Event, b.EventType, q.Get("event")),
			CampaignID: first(b.Campaign, b.CampaignID, q.Get("campaign")),
			Value:      first(rawValue(b.Value), rawValue(b.SaleValue), q.Get("value")),
			EventID:    first(b.EventID, q.Get("eid")),
		}, nil
	}

	if err := r.ParseForm(); err != nil {
		return ingest.Request{}, err
	}
	return ingest.Request{
		Token:      r.Form.Get("token"),
		EventType:  first(r.Form.Get("event"), r.Form.Get("event_type")),
		CampaignID: first(r.Form.Get("campaign"), r.Form.Get("campaign_id")),
		Value:      first(r.Form.Get("value"), r.Form.Get("sale_value")),
		EventID:    r.Form.Get("eid"),
	}, nil
}

// rawValue accepts both 49.90 and "49.90".
func rawValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
