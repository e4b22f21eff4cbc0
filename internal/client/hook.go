package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sozercan/recyclens/apimodels"
	"github.com/sozercan/recyclens/internal/sanitize"
)

var ErrBusy = errors.New("analysis already in progress")

// Hook drives one combined analysis at a time and exposes its progress.
// Stages between the request and the response are advanced by the client
// itself; see Stage.Cosmetic.
type Hook struct {
	api *API

	mu         sync.Mutex
	stage      Stage
	loading    bool
	errMsg     string
	data       *apimodels.AnalyzeResponse
	visionData json.RawMessage
	onStage    func(Stage)
}

func NewHook(api *API) *Hook {
	return &Hook{api: api, stage: StageIdle}
}

// OnStage registers fn to be called after every stage change. fn runs
// without the hook's lock held and may call its getters.
func (h *Hook) OnStage(fn func(Stage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStage = fn
}

// setStage must be called with mu held. It returns the callback to run
// once the lock is released.
func (h *Hook) setStage(to Stage) (func(), error) {
	next, err := Transition(h.stage, to)
	if err != nil {
		return nil, err
	}
	h.stage = next
	fn := h.onStage
	return func() {
		if fn != nil {
			fn(next)
		}
	}, nil
}

// advance moves to the next stage. The only moves it makes are forward
// ones that cannot fail while a request is in flight.
func (h *Hook) advance(to Stage) {
	h.mu.Lock()
	notify, err := h.setStage(to)
	h.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("unexpected stage transition")
		return
	}
	notify()
}

// Analyze submits req to the combined endpoint, sanitizes the result and
// leaves the hook in the geocoding stage. Call Complete once any follow-up
// work on the result is done. On failure the hook moves to the error stage
// and the error is returned.
func (h *Hook) Analyze(ctx context.Context, req apimodels.AnalyzeRequest) (*apimodels.AnalyzeResponse, error) {
	h.mu.Lock()
	if h.loading {
		h.mu.Unlock()
		return nil, ErrBusy
	}
	notify, err := h.setStage(StageAnalyzingVision)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	h.errMsg = ""
	h.data = nil
	h.visionData = nil
	h.loading = true
	h.mu.Unlock()
	notify()

	body, err := h.api.analyzeRaw(ctx, req)
	if err != nil {
		return nil, h.fail(err)
	}

	h.advance(StageQueryingRAG)

	analysis, visionData, err := unwrapAnalysis(body)
	if err != nil {
		return nil, h.fail(err)
	}
	cleaned, err := sanitize.Response(analysis)
	if err != nil {
		return nil, h.fail(err)
	}

	h.advance(StageAnalyzingRecyclability)

	h.mu.Lock()
	h.data = cleaned
	h.visionData = visionData
	h.mu.Unlock()

	h.advance(StageGeocoding)
	return cleaned, nil
}

// Complete marks the current analysis as finished.
func (h *Hook) Complete() error {
	h.mu.Lock()
	notify, err := h.setStage(StageComplete)
	if err == nil {
		h.loading = false
	}
	h.mu.Unlock()
	if err != nil {
		return err
	}
	notify()
	return nil
}

func (h *Hook) fail(err error) error {
	h.mu.Lock()
	notify, terr := h.setStage(StageError)
	h.loading = false
	h.errMsg = err.Error()
	h.mu.Unlock()
	if terr == nil {
		notify()
	}
	return err
}

func (h *Hook) Stage() Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stage
}

func (h *Hook) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

// ErrorMessage is the message of the last failure, or "" if the last
// analysis succeeded.
func (h *Hook) ErrorMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errMsg
}

// Data is the sanitized result of the last successful analysis.
func (h *Hook) Data() *apimodels.AnalyzeResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

// VisionData is the raw vision payload when the server included one.
func (h *Hook) VisionData() json.RawMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visionData
}

// unwrapAnalysis accepts either a bare analysis or one nested under
// "analysis" alongside an optional "visionData".
func unwrapAnalysis(body []byte) (*apimodels.AnalyzeResponse, json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	raw := json.RawMessage(body)
	if nested, ok := envelope["analysis"]; ok && !isNull(nested) {
		raw = nested
	}

	var analysis apimodels.AnalyzeResponse
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	var visionData json.RawMessage
	if v, ok := envelope["visionData"]; ok && !isNull(v) {
		visionData = v
	}
	return &analysis, visionData, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
