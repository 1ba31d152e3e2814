package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/objects"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// HandleResume brings a down check back up by operator action. This is
// the release valve for manual_resume checks, which ignore success pings
// while down.
func HandleResume(db *gorm.DB) http.HandlerFunc {
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

		resumed, err := store.ResumeCheck(db, check, time.Now().UTC())
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if !resumed {
			http.Error(w, "check is not down", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}
}

// HandleDeleteCheck removes a check with everything it owns, including
// ping bodies offloaded to object storage. Shared channels stay.
func HandleDeleteCheck(db *gorm.DB, objectStore *objects.Store) http.HandlerFunc {
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

		if err := store.DeleteCheck(db, check); err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		if objectStore != nil {
			// Best effort: an unreachable bucket must not resurrect the
			// check; leftover objects age out with the bucket policy.
			if err := objectStore.DeletePingBodies(r.Context(), check.Code); err != nil {
				log.Printf("Failed to delete ping bodies for %s: %v", check.Code, err)
			}
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}
}

// HandlePause suspends monitoring for a check.
func HandlePause(db *gorm.DB) http.HandlerFunc {
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

		if err := store.PauseCheck(db, check); err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}
}
