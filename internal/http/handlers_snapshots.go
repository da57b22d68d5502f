package httpx

import (
	"net/http"

	"github.com/craftwell/turnaround/internal/service"
)

// SnapshotHandlers provides HTTP handlers for the daily snapshot recorder and
// the performance report built on its matured rows.
type SnapshotHandlers struct {
	Recorder  *service.SnapshotService
	Evaluator *service.EvaluationService
}

// Record handles the scheduler's daily snapshot trigger.
func (h *SnapshotHandlers) Record(w http.ResponseWriter, r *http.Request) {
	result, err := h.Recorder.RecordDaily(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// PerformanceReport handles accuracy report requests over matured snapshots.
func (h *SnapshotHandlers) PerformanceReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Evaluator.Evaluate(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
