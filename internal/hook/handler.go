package hook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"example.com/voicescribe/internal/database"
	"example.com/voicescribe/internal/transcribe"
)

// RecordStore is the slice of the correlation store the receiver needs.
type RecordStore interface {
	GetRecord(ctx context.Context, jobID string) (database.Record, error)
	SetStatus(ctx context.Context, jobID, status string) error
}

// Handler resolves incoming job state change events against the correlation
// store and updates the matched record's status. It does not fetch
// transcription results.
type Handler struct {
	store  RecordStore
	logger *slog.Logger
}

func NewHandler(store RecordStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Router returns the receiver's HTTP routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/transcribe/hook", h.handleStateChange).Methods(http.MethodPost)
	return r
}

func (h *Handler) handleStateChange(w http.ResponseWriter, r *http.Request) {
	var ev transcribe.StateChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "malformed event payload", http.StatusBadRequest)
		return
	}
	if ev.DetailType != transcribe.StateChangeDetailType {
		http.Error(w, "unexpected detail-type", http.StatusBadRequest)
		return
	}
	jobID := ev.Detail.TranscriptionJobName
	if jobID == "" {
		http.Error(w, "missing TranscriptionJobName", http.StatusBadRequest)
		return
	}

	rec, err := h.store.GetRecord(r.Context(), jobID)
	if err != nil {
		var nf *database.NotFoundError
		if errors.As(err, &nf) {
			h.logger.Warn("state change for unknown job", slog.String("job_id", jobID))
			http.Error(w, "unknown job", http.StatusNotFound)
			return
		}
		h.logger.Error("record lookup failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	status := ev.Detail.TranscriptionJobStatus
	if err := h.store.SetStatus(r.Context(), jobID, status); err != nil {
		h.logger.Error("status update failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	h.logger.Info("job state recorded",
		slog.String("job_id", jobID),
		slog.String("status", status),
		slog.String("s3_uri", rec.S3URI),
	)

	rec.JobStatus = status
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}
