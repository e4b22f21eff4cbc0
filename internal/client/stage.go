package client

import (
	"errors"
	"fmt"
	"slices"
)

// Stage is a point in the progress indicator for one analysis request.
type Stage string

const (
	StageIdle                   Stage = "idle"
	StageAnalyzingVision        Stage = "analyzing-vision"
	StageQueryingRAG            Stage = "querying-rag"
	StageAnalyzingRecyclability Stage = "analyzing-recyclability"
	StageGeocoding              Stage = "geocoding"
	StageComplete               Stage = "complete"
	StageError                  Stage = "error"
)

var ErrInvalidTransition = errors.New("invalid stage transition")

// forward lists the single successor of each in-flight stage.
var forward = map[Stage]Stage{
	StageIdle:                   StageAnalyzingVision,
	StageAnalyzingVision:        StageQueryingRAG,
	StageQueryingRAG:            StageAnalyzingRecyclability,
	StageAnalyzingRecyclability: StageGeocoding,
	StageGeocoding:              StageComplete,
}

// Terminal reports whether s ends a request lifecycle.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Cosmetic reports whether the client enters s on its own guess rather
// than on a signal from the server. The combined endpoint does retrieval
// and reasoning inside one call, so these stages only mark time.
func (s Stage) Cosmetic() bool {
	return s == StageQueryingRAG || s == StageAnalyzingRecyclability
}

// Transition validates a move from one stage to another and returns the
// new stage. A new request may start from idle or any terminal stage, and
// error is reachable from every non-terminal stage.
func Transition(from, to Stage) (Stage, error) {
	switch {
	case to == StageError && !from.Terminal():
		return to, nil
	case to == StageAnalyzingVision && slices.Contains([]Stage{StageIdle, StageComplete, StageError}, from):
		return to, nil
	case forward[from] == to:
		return to, nil
	}
	return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
