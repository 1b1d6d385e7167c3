package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/skpttrack/tracker/internal/db"
)

const readyTimeout = 2 * time.Second

// Pinger is an optional dependency checked by readiness, such as the
// redis duplicate filter.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB          *sql.DB
	Version     string
	Environment string
	Deps        map[string]Pinger
}

// Live always answers OK while the process is serving, with or without a
// database.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     h.Version,
		"environment": h.Environment,
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	code := http.StatusOK
	if err := db.Ping(r.Context(), h.DB, readyTimeout); err != nil {
		checks["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	for name, dep := range h.Deps {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := dep.Ping(ctx)
		cancel()
		// optional dependencies degrade but do not fail readiness
		if err != nil {
			checks[name] = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	status := "ready"
	if code != http.StatusOK {
		status = "unavailable"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
