package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/recyclens/apimodels"
	"github.com/sozercan/recyclens/internal/config"
)

type fakeVision struct {
	result *apimodels.VisionResult
	err    error
	panics bool
	images []string
}

func (f *fakeVision) Analyze(_ context.Context, image string) (*apimodels.VisionResult, error) {
	f.images = append(f.images, image)
	if f.panics {
		panic("vision exploded")
	}
	return f.result, f.err
}

type recyclabilityCall struct {
	vision   *apimodels.VisionResult
	context  string
	location string
}

type fakeRecyclability struct {
	result *apimodels.AnalyzeResponse
	err    error
	calls  []recyclabilityCall
}

func (f *fakeRecyclability) Analyze(_ context.Context, v *apimodels.VisionResult, userContext, location string) (*apimodels.AnalyzeResponse, error) {
	f.calls = append(f.calls, recyclabilityCall{vision: v, context: userContext, location: location})
	return f.result, f.err
}

type fakeHealth struct {
	configured, healthy bool
}

func (f fakeHealth) Configured() bool            { return f.configured }
func (f fakeHealth) Health(context.Context) bool { return f.healthy }

var (
	sampleVision = &apimodels.VisionResult{
		PrimaryMaterial:    "Plastic #1 (PET)",
		SecondaryMaterials: []string{},
		Category:           "Food container",
		Condition:          "clean",
		Contaminants:       []string{},
		Confidence:         0.9,
		ShortDescription:   "A clamshell.",
	}
	sampleAnalysis = &apimodels.AnalyzeResponse{
		IsRecyclable: true,
		Category:     "Plastic container",
		Bin:          apimodels.BinRecycling,
		Confidence:   0.8,
		Instructions: []string{"Rinse"},
		Reasoning:    "Accepted curbside.",
		LocationUsed: "Ithaca, NY",
		Facilities:   []apimodels.Facility{},
	}
)

type harness struct {
	vision        *fakeVision
	recyclability *fakeRecyclability
	handler       http.Handler
}

func newHarness() *harness {
	h := &harness{
		vision:        &fakeVision{result: sampleVision},
		recyclability: &fakeRecyclability{result: sampleAnalysis},
	}
	h.handler = New(config.ServerConfig{}, h.vision, h.recyclability, fakeHealth{}).Handler()
	return h
}

func (h *harness) post(t *testing.T, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestLocationRequiredBeforeAnyAdapter(t *testing.T) {
	bodies := []string{
		`{"context":"glass jar"}`,
		`{"location":"","context":"glass jar"}`,
		`{"location":"   ","image":"abc"}`,
		`{"location":42,"context":"glass jar"}`,
		`{"location":null,"visionResult":{"primaryMaterial":"Glass"}}`,
	}
	for _, path := range []string{"/api/analyze", "/api/analyze/recyclability"} {
		for _, body := range bodies {
			t.Run(path+" "+body, func(t *testing.T) {
				h := newHarness()
				rec, out := h.post(t, path, body)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "Location is required", out["error"])
				assert.Empty(t, h.vision.images)
				assert.Empty(t, h.recyclability.calls)
			})
		}
	}
}

func TestAnalyzeRequiresImageOrContext(t *testing.T) {
	for _, body := range []string{
		`{"location":"Ithaca, NY"}`,
		`{"location":"Ithaca, NY","context":"  ","image":""}`,
		`{"location":"Ithaca, NY","image":null}`,
		`{"location":"Ithaca, NY","image":123}`,
	} {
		h := newHarness()
		rec, out := h.post(t, "/api/analyze", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Either image or context is required", out["error"], body)
		assert.Empty(t, h.vision.images)
		assert.Empty(t, h.recyclability.calls)
	}
}

func TestAnalyzeContextOnlySkipsVision(t *testing.T) {
	h := newHarness()

	rec, out := h.post(t, "/api/analyze", `{"location":"Ithaca, NY","context":"plastic clamshell container"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.vision.images)
	require.Len(t, h.recyclability.calls, 1)
	call := h.recyclability.calls[0]
	assert.Nil(t, call.vision)
	assert.Equal(t, "plastic clamshell container", call.context)
	assert.Equal(t, "Ithaca, NY", call.location)

	// bare AnalyzeResponse, no stage wrapper
	assert.NotContains(t, out, "stage")
	assert.Equal(t, "recycling", out["bin"])
	assert.Equal(t, true, out["isRecyclable"])
}

func TestAnalyzeWithImageRunsVisionFirst(t *testing.T) {
	h := newHarness()

	rec, _ := h.post(t, "/api/analyze", `{"location":"Ithaca, NY","image":"data:image/png;base64,AAAA"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, h.vision.images)
	require.Len(t, h.recyclability.calls, 1)
	assert.Equal(t, sampleVision, h.recyclability.calls[0].vision)
	assert.Equal(t, "", h.recyclability.calls[0].context)
}

func TestAnalyzeVisionFailureIs500(t *testing.T) {
	h := newHarness()
	h.vision.err = errors.New("vision model call failed: quota")

	rec, out := h.post(t, "/api/analyze", `{"location":"Ithaca, NY","image":"AAAA","context":"jar"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to analyze item", out["error"])
	assert.Equal(t, "vision model call failed: quota", out["message"])
	assert.Empty(t, h.recyclability.calls)
}

func TestAnalyzeReasoningFailureIs500(t *testing.T) {
	h := newHarness()
	h.recyclability.err = errors.New("LLM analysis failed: timeout")

	rec, out := h.post(t, "/api/analyze", `{"location":"Ithaca, NY","context":"jar"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to analyze item", out["error"])
	assert.Equal(t, "LLM analysis failed: timeout", out["message"])
}

func TestVisionEndpoint(t *testing.T) {
	h := newHarness()

	rec, out := h.post(t, "/api/analyze/vision", `{"image":"AAAA"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vision", out["stage"])
	result := out["result"].(map[string]any)
	assert.Equal(t, "Plastic #1 (PET)", result["primaryMaterial"])
}

func TestVisionEndpointRequiresImage(t *testing.T) {
	for _, body := range []string{`{"image":""}`, `{}`, `{"image":7}`, `{"image":null}`} {
		h := newHarness()
		rec, out := h.post(t, "/api/analyze/vision", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, map[string]any{"error": "Image (base64) is required"}, out, body)
		assert.Empty(t, h.vision.images)
	}
}

func TestVisionEndpointFailure(t *testing.T) {
	h := newHarness()
	h.vision.err = errors.New("invalid image: not valid base64")

	rec, out := h.post(t, "/api/analyze/vision", `{"image":"???"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to analyze image", out["error"])
	assert.Equal(t, "invalid image: not valid base64", out["message"])
}

func TestRecyclabilityEndpoint(t *testing.T) {
	h := newHarness()

	rec, out := h.post(t, "/api/analyze/recyclability",
		`{"visionResult":{"primaryMaterial":"Glass","confidence":0.7},"location":"Albany, NY"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "recyclability", out["stage"])
	assert.Equal(t, "recycling", out["result"].(map[string]any)["bin"])

	require.Len(t, h.recyclability.calls, 1)
	call := h.recyclability.calls[0]
	require.NotNil(t, call.vision)
	assert.Equal(t, "Glass", call.vision.PrimaryMaterial)
	assert.Equal(t, "", call.context)
	assert.Empty(t, h.vision.images)
}

func TestRecyclabilityEndpointContextOnly(t *testing.T) {
	h := newHarness()

	rec, _ := h.post(t, "/api/analyze/recyclability", `{"visionResult":null,"location":"Albany, NY","context":"egg carton"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.recyclability.calls, 1)
	assert.Nil(t, h.recyclability.calls[0].vision)
	assert.Equal(t, "egg carton", h.recyclability.calls[0].context)
}

func TestRecyclabilityEndpointValidation(t *testing.T) {
	h := newHarness()

	rec, out := h.post(t, "/api/analyze/recyclability", `{"location":"Albany, NY","context":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Either vision result or context is required", out["error"])

	rec, out = h.post(t, "/api/analyze/recyclability", `{"location":"Albany, NY","visionResult":"glass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid vision result", out["error"])

	assert.Empty(t, h.recyclability.calls)
}

func TestRecyclabilityEndpointFailure(t *testing.T) {
	h := newHarness()
	h.recyclability.err = errors.New("boom")

	rec, out := h.post(t, "/api/analyze/recyclability", `{"location":"Albany, NY","context":"jar"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to analyze recyclability", out["error"])
	assert.Equal(t, "boom", out["message"])
}

func TestMalformedBody(t *testing.T) {
	h := newHarness()

	rec, out := h.post(t, "/api/analyze", `{"location":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", out["error"])
}

func TestAdapterPanicDoesNotCrash(t *testing.T) {
	h := newHarness()
	h.vision.panics = true

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/vision", strings.NewReader(`{"image":"AAAA"}`))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health fakeHealth
		want   apimodels.RAGHealth
	}{
		{"rag disabled", fakeHealth{}, apimodels.RAGHealth{}},
		{"rag down", fakeHealth{configured: true}, apimodels.RAGHealth{Configured: true}},
		{"rag up", fakeHealth{configured: true, healthy: true}, apimodels.RAGHealth{Configured: true, Reachable: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(config.ServerConfig{}, &fakeVision{}, &fakeRecyclability{}, tt.health).Handler()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var got apimodels.HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, "ok", got.Status)
			assert.Equal(t, tt.want, got.RAG)
		})
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(config.ServerConfig{Host: "127.0.0.1", Port: "0"}, &fakeVision{}, &fakeRecyclability{}, fakeHealth{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
