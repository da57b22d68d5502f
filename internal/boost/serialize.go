package boost

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Marshal serializes the ensemble to its stored artifact form. JSON's
// shortest-round-trip float encoding means an unmarshalled copy predicts
// bit-identically to the original.
func Marshal(e *Ensemble) ([]byte, error) {
	if e == nil {
		return nil, errors.New("nil ensemble")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal ensemble: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a stored artifact back into an ensemble.
func Unmarshal(data []byte) (*Ensemble, error) {
	var e Ensemble
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal ensemble: %w", err)
	}
	if len(e.Roots) == 0 && e.Base == 0 && e.Gains == nil {
		return nil, errors.New("artifact is empty or malformed")
	}
	return &e, nil
}
