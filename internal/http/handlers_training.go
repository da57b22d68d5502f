// Package httpx provides the JSON API for the completion-time prediction pipeline.
package httpx

import (
	"net/http"

	"github.com/craftwell/turnaround/config"
	"github.com/craftwell/turnaround/internal/service"
)

// TrainingHandlers provides HTTP handlers for training runs.
type TrainingHandlers struct {
	Svc            *service.TrainingService
	DefaultProfile config.TrainingProfile
}

type trainRequestBody struct {
	Profile string `json:"profile"`
	Save    bool   `json:"save"`
}

// Train handles interactive training requests: holdout evaluation, saved only
// when the caller asks for it.
func (h *TrainingHandlers) Train(w http.ResponseWriter, r *http.Request) {
	var body trainRequestBody
	if !DecodeJSON(w, r, &body) {
		return
	}

	profile, ok := h.resolveProfile(w, body.Profile)
	if !ok {
		return
	}

	result, err := h.Svc.Train(r.Context(), service.TrainRequest{
		Profile:  profile,
		Holdout:  true,
		AutoSave: body.Save,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Retrain handles the scheduler's unattended retrain trigger: cross-validated,
// always saved, run-locked against a double fire.
func (h *TrainingHandlers) Retrain(w http.ResponseWriter, r *http.Request) {
	result, err := h.Svc.TrainScheduled(r.Context(), h.DefaultProfile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// resolveProfile parses the requested profile name, falling back to the
// configured default when the request leaves it empty. Unknown names are
// rejected rather than defaulted.
func (h *TrainingHandlers) resolveProfile(w http.ResponseWriter, name string) (config.TrainingProfile, bool) {
	if name == "" {
		return h.DefaultProfile, true
	}
	var profile config.TrainingProfile
	if err := profile.UnmarshalText([]byte(name)); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "unknown_profile", Err: err})
		return "", false
	}
	return profile, true
}
