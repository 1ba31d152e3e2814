package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/objects"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// maxBodyBytes caps how much of a ping body is read off the wire.
const maxBodyBytes = 100 * 1024

// HandlePing records a ping of the given kind for the check addressed by
// its UUID. GET and HEAD are accepted alongside POST so that plain curl
// and wget invocations work.
func HandlePing(db *gorm.DB, objectStore *objects.Store, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordPing(w, r, db, objectStore, kind, nil)
	}
}

// HandlePingExitStatus records a ping whose URL carries the job's exit
// status; zero means success, anything else a failure.
func HandlePingExitStatus(db *gorm.DB, objectStore *objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exitStatus, err := strconv.Atoi(chi.URLParam(r, "exitStatus"))
		if err != nil || exitStatus < 0 || exitStatus > 255 {
			http.Error(w, "bad exit status", http.StatusBadRequest)
			return
		}
		recordPing(w, r, db, objectStore, "", &exitStatus)
	}
}

func recordPing(w http.ResponseWriter, r *http.Request, db *gorm.DB, objectStore *objects.Store, kind string, exitStatus *int) {
	check, err := store.CheckByCode(db, chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if check == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	opts := ingest.Options{
		Kind:       kind,
		Scheme:     scheme,
		RemoteAddr: r.RemoteAddr,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		ExitStatus: exitStatus,
		RID:        r.URL.Query().Get("rid"),
		Body:       body,
	}

	if _, err := ingest.RecordPing(db, objectStore, check, opts); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}
