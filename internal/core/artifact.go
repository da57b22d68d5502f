package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/craftwell/turnaround/internal/boost"
	"github.com/craftwell/turnaround/internal/domain/model"
)

// ModelArtifact is the full serialized payload of one trained model: the
// boosted ensemble plus the customer statistics table it was fitted with.
// The statistics must travel with the ensemble because serving joins them
// into every feature vector; a model served against a different statistics
// table than it trained on is quietly wrong.
type ModelArtifact struct {
	Ensemble      *boost.Ensemble                `json:"ensemble"`
	CustomerStats map[string]model.CustomerStats `json:"customer_stats"`
}

// EncodeArtifact serializes the payload for the model store.
func EncodeArtifact(a *ModelArtifact) ([]byte, error) {
	if a == nil || a.Ensemble == nil {
		return nil, errors.New("artifact requires an ensemble")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode model artifact: %w", err)
	}
	return data, nil
}

// DecodeArtifact deserializes a stored payload.
func DecodeArtifact(data []byte) (*ModelArtifact, error) {
	var a ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if a.Ensemble == nil {
		return nil, errors.New("artifact is missing its ensemble")
	}
	if a.CustomerStats == nil {
		a.CustomerStats = map[string]model.CustomerStats{}
	}
	return &a, nil
}
