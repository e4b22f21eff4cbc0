// Package rag queries the optional regulation retrieval service. The service
// is best effort: every failure degrades to an Unavailable result and is
// never returned to the caller as an error.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 30 * time.Second

// RegulationResult is what the retrieval service knows about a material in
// a location.
type RegulationResult struct {
	Regulations string   `json:"regulations"`
	Sources     []string `json:"sources"`
}

type queryRequest struct {
	Material  string `json:"material"`
	Location  string `json:"location"`
	Condition string `json:"condition"`
	Context   string `json:"context"`
}

// Result is either Found or Unavailable.
type Result struct {
	regulation *RegulationResult
	reason     string
}

func Found(r RegulationResult) Result {
	return Result{regulation: &r}
}

func Unavailable(reason string) Result {
	return Result{reason: reason}
}

// Regulation returns the retrieved regulations, or nil when unavailable.
func (r Result) Regulation() *RegulationResult {
	return r.regulation
}

func (r Result) Available() bool {
	return r.regulation != nil
}

// Reason is why the result is unavailable. It is meant for logs only.
func (r Result) Reason() string {
	return r.reason
}

type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient returns a client for the service at baseURL. An empty baseURL
// yields a client that reports every query as unavailable without making
// network calls.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{baseURL: baseURL}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Query asks the service for regulations. It makes a single attempt.
func (c *Client) Query(ctx context.Context, material, location, condition, userContext string) Result {
	if !c.Configured() {
		log.Warn().Msg("RAG_SERVICE_URL not configured, skipping RAG query")
		return Unavailable("not configured")
	}

	res, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(queryRequest{
			Material:  material,
			Location:  location,
			Condition: condition,
			Context:   userContext,
		}).
		Post("/query")
	if err != nil {
		if isTimeout(err) {
			log.Error().Err(err).Msg("RAG service request timed out")
			return Unavailable("timeout")
		}
		log.Error().Err(err).Msg("RAG service error")
		return Unavailable(fmt.Sprintf("transport: %v", err))
	}

	if !res.IsSuccess() {
		log.Error().Int("status", res.StatusCode()).Str("statusText", res.Status()).Msg("RAG service error")
		return Unavailable(fmt.Sprintf("status %d", res.StatusCode()))
	}

	var out RegulationResult
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		log.Error().Err(err).Msg("RAG service returned an undecodable body")
		return Unavailable("invalid response body")
	}

	log.Debug().
		Str("material", material).
		Str("location", location).
		Int("sources", len(out.Sources)).
		Msg("RAG query completed")

	return Found(out)
}

// Health reports whether the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	res, err := c.httpClient.R().SetContext(ctx).Get("/health")
	if err != nil {
		log.Warn().Err(err).Msg("RAG health check failed")
		return false
	}
	return res.IsSuccess()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
