// Package client talks to the analysis API from Go programs and tracks the
// progress of a combined analysis the way the web frontend presents it.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sozercan/recyclens/apimodels"
)

// Vision and reasoning calls can take well over a minute for large photos.
const DefaultTimeout = 120 * time.Second

// StatusError is returned for a non-2xx response. Its message is the
// response body, or a generic line when the body is empty.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("Request failed (%d)", e.StatusCode)
}

type API struct {
	httpClient *resty.Client
}

func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &API{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

func (a *API) post(ctx context.Context, path string, body any) ([]byte, error) {
	res, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, &StatusError{StatusCode: res.StatusCode(), Body: res.String()}
	}
	return res.Body(), nil
}

// analyzeRaw calls the combined endpoint and returns the undecoded body.
func (a *API) analyzeRaw(ctx context.Context, req apimodels.AnalyzeRequest) ([]byte, error) {
	return a.post(ctx, "/api/analyze", req)
}

// Analyze calls the combined endpoint. The result is not sanitized; use a
// Hook for that.
func (a *API) Analyze(ctx context.Context, req apimodels.AnalyzeRequest) (*apimodels.AnalyzeResponse, error) {
	body, err := a.analyzeRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	var out apimodels.AnalyzeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &out, nil
}

// Vision runs only the image classification stage.
func (a *API) Vision(ctx context.Context, image string) (*apimodels.VisionResult, error) {
	body, err := a.post(ctx, "/api/analyze/vision", apimodels.VisionRequest{Image: image})
	if err != nil {
		return nil, err
	}
	var out apimodels.StageResponse[*apimodels.VisionResult]
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode vision result: %w", err)
	}
	if out.Result == nil {
		return &apimodels.VisionResult{}, nil
	}
	return out.Result, nil
}

// Recyclability runs only the reasoning stage. visionResult may be nil when
// userContext describes the item.
func (a *API) Recyclability(ctx context.Context, visionResult *apimodels.VisionResult, location, userContext string) (*apimodels.AnalyzeResponse, error) {
	req := apimodels.RecyclabilityRequest{
		VisionResult: visionResult,
		Location:     location,
		Context:      userContext,
	}
	body, err := a.post(ctx, "/api/analyze/recyclability", req)
	if err != nil {
		return nil, err
	}
	var out apimodels.StageResponse[*apimodels.AnalyzeResponse]
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode recyclability result: %w", err)
	}
	if out.Result == nil {
		return &apimodels.AnalyzeResponse{}, nil
	}
	return out.Result, nil
}
