package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/status"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/uptime"
)

// HandleBadge serves the read-only JSON badge for a check, addressed by
// its fingerprint so the check UUID stays private.
func HandleBadge(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check, err := store.CheckByFingerprint(db, chi.URLParam(r, "fingerprint"))
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if check == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		label := check.Status
		if state, err := status.Resolve(check, time.Now().UTC()); err == nil {
			label = state.Label
		}

		stats, err := uptime.Calculate(db, check, 30*24*time.Hour)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":   check.Name,
			"status": label,
			"uptime": stats.UptimePercentage,
		})
	}
}

// HandleFlipHistory serves the recent status transitions of a check.
func HandleFlipHistory(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check, err := store.CheckByCode(db, chi.URLParam(r, "code"))
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if check == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		flips, err := store.FlipHistory(db, check.ID, 100)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"flips": flips})
	}
}
