package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sozercan/recyclens/apimodels"
)

// Base64 photos from phones run to several megabytes.
const maxBodyBytes = 25 << 20

const (
	errInvalidBody         = "Invalid request body"
	errImageRequired       = "Image (base64) is required"
	errLocationRequired    = "Location is required"
	errImageOrContext      = "Either image or context is required"
	errVisionOrContext     = "Either vision result or context is required"
	errInvalidVisionResult = "Invalid vision result"
	errVisionFailed        = "Failed to analyze image"
	errRecyclabilityFailed = "Failed to analyze recyclability"
	errAnalyzeFailed       = "Failed to analyze item"
)

const (
	stageVision        = "vision"
	stageRecyclability = "recyclability"
	serviceName        = "recyclens"
)

// Fields are decoded raw so that a present-but-mistyped value fails the
// same validation as a missing one.
type rawRequest struct {
	Image        json.RawMessage `json:"image"`
	Location     json.RawMessage `json:"location"`
	Context      json.RawMessage `json:"context"`
	VisionResult json.RawMessage `json:"visionResult"`
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*rawRequest, bool) {
	var req rawRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("failed to decode request body")
		writeError(w, http.StatusBadRequest, errInvalidBody, "")
		return nil, false
	}
	return &req, true
}

// stringField returns the field's value if it is a JSON string, else "".
func stringField(raw json.RawMessage) string {
	s, _ := apimodels.StringField(raw)
	return s
}

func hasVisionResult(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

func hasContext(userContext string) bool {
	return strings.TrimSpace(userContext) != ""
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	image, ok := apimodels.StringField(req.Image)
	if !ok {
		writeError(w, http.StatusBadRequest, errImageRequired, "")
		return
	}

	visionResult, err := s.vision.Analyze(r.Context(), image)
	if err != nil {
		log.Error().Err(err).Msg("vision analysis error")
		writeError(w, http.StatusInternalServerError, errVisionFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apimodels.StageResponse[*apimodels.VisionResult]{Stage: stageVision, Result: visionResult})
}

func (s *Server) handleRecyclability(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	location := stringField(req.Location)
	if !apimodels.HasLocation(location) {
		writeError(w, http.StatusBadRequest, errLocationRequired, "")
		return
	}

	userContext := stringField(req.Context)
	if !hasVisionResult(req.VisionResult) && !hasContext(userContext) {
		writeError(w, http.StatusBadRequest, errVisionOrContext, "")
		return
	}

	var visionResult *apimodels.VisionResult
	if hasVisionResult(req.VisionResult) {
		visionResult = &apimodels.VisionResult{}
		if err := json.Unmarshal(req.VisionResult, visionResult); err != nil {
			writeError(w, http.StatusBadRequest, errInvalidVisionResult, "")
			return
		}
	}

	result, err := s.recyclability.Analyze(r.Context(), visionResult, userContext, location)
	if err != nil {
		log.Error().Err(err).Msg("recyclability analysis error")
		writeError(w, http.StatusInternalServerError, errRecyclabilityFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apimodels.StageResponse[*apimodels.AnalyzeResponse]{Stage: stageRecyclability, Result: result})
}

// handleAnalyze runs the whole pipeline in one call and returns the bare
// result, which older clients expect.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	location := stringField(req.Location)
	if !apimodels.HasLocation(location) {
		writeError(w, http.StatusBadRequest, errLocationRequired, "")
		return
	}

	image, hasImage := apimodels.StringField(req.Image)
	userContext := stringField(req.Context)
	if !hasImage && !hasContext(userContext) {
		writeError(w, http.StatusBadRequest, errImageOrContext, "")
		return
	}

	var visionResult *apimodels.VisionResult
	if hasImage {
		var err error
		visionResult, err = s.vision.Analyze(r.Context(), image)
		if err != nil {
			log.Error().Err(err).Msg("analyze route vision error")
			writeError(w, http.StatusInternalServerError, errAnalyzeFailed, err.Error())
			return
		}
	}

	result, err := s.recyclability.Analyze(r.Context(), visionResult, userContext, location)
	if err != nil {
		log.Error().Err(err).Msg("analyze route error")
		writeError(w, http.StatusInternalServerError, errAnalyzeFailed, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := apimodels.HealthResponse{Status: "ok", Service: serviceName}
	if s.regulations != nil && s.regulations.Configured() {
		resp.RAG.Configured = true
		resp.RAG.Reachable = s.regulations.Health(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, apimodels.ErrorResponse{Error: msg, Message: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
