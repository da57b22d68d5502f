package httpx

import (
	"errors"
	"net/http"

	"github.com/craftwell/turnaround/internal/service"
)

// PredictionHandlers provides HTTP handlers for the serving path.
type PredictionHandlers struct {
	Svc *service.PredictionService
}

type predictRequestBody struct {
	OrderID string `json:"order_id"`
}

// Predict handles a single-order prediction request.
func (h *PredictionHandlers) Predict(w http.ResponseWriter, r *http.Request) {
	var body predictRequestBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.OrderID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_request",
			Err:     errors.New("order_id is required"),
		})
		return
	}

	pred, err := h.Svc.PredictOne(r.Context(), body.OrderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, pred)
}

type predictBatchRequestBody struct {
	OrderIDs []string `json:"order_ids"`
}

// PredictBatch handles a bounded multi-order prediction request.
func (h *PredictionHandlers) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var body predictBatchRequestBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if len(body.OrderIDs) == 0 {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_request",
			Err:     errors.New("order_ids must not be empty"),
		})
		return
	}

	preds, err := h.Svc.PredictBatch(r.Context(), body.OrderIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

// ModelStatus reports the cached, published, and stored model versions.
func (h *PredictionHandlers) ModelStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Svc.Status(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
