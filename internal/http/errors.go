package httpx

import (
	"errors"
	"net/http"

	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/service"
)

// writeServiceError maps domain and service errors onto stable HTTP error
// codes. Callers that already know the right code should use WriteError
// directly; this is the shared fallback for errors bubbling out of services.
func writeServiceError(w http.ResponseWriter, err error) {
	var insufficient *service.InsufficientDataError
	var mismatch *service.FeatureMismatchError

	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "order_not_found", Err: err})
	case errors.Is(err, model.ErrNoModelAvailable):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "no_model_available", Err: err})
	case errors.As(err, &insufficient):
		WriteError(w, ErrorParams{Code: http.StatusUnprocessableEntity, ErrCode: "insufficient_data", Err: err})
	case errors.As(err, &mismatch):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "feature_mismatch", Err: err})
	case errors.Is(err, service.ErrBatchTooLarge):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "batch_too_large", Err: err})
	case errors.Is(err, service.ErrRunInProgress):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "run_in_progress", Err: err})
	case errors.Is(err, service.ErrStoreUnavailable):
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "store_unavailable", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
	}
}
