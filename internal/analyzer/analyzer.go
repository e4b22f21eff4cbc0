package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"

	"github.com/sozercan/recyclens/apimodels"
	"github.com/sozercan/recyclens/internal/llm"
	"github.com/sozercan/recyclens/internal/rag"
)

const maxRegulationChars = 8000

var SystemPrompt = strings.TrimSpace(dedent.Dedent(`
	You are RecycLens, an assistant that tells people how to dispose of an item
	correctly where they live. Local rules differ between municipalities, so
	always reason about the user's location.

	When local regulations are provided, they take precedence over general
	knowledge. When they are not, give your best general guidance for the
	location and lower your confidence accordingly.

	Only recommend facilities you are confident exist. Prefer official
	municipal or county sources.`))

const responseFormat = `Respond in JSON format with these fields:
- isRecyclable: true if the item can go in a recycling stream in this location
- category: short category of the item
- bin: one of "recycling", "landfill", "compost", "hazardous", "unknown"
- confidence: 0 to 1
- materialDescription: one sentence describing the material
- instructions: ordered list of preparation and disposal steps
- reasoning: a short paragraph explaining the decision
- locationUsed: the location the guidance applies to
- facilities: list of {"name", "type", "address", "url", "notes"} for nearby drop-off or disposal sites, empty list if none
- webSearchSources: list of URLs you relied on, empty list if none

Respond ONLY with the JSON object, no markdown or other text.`

// Regulations looks up local disposal rules. *rag.Client implements it.
type Regulations interface {
	Query(ctx context.Context, material, location, condition, userContext string) rag.Result
}

type Analyzer struct {
	regulations Regulations
	llmProvider llm.Provider
}

func New(regulations Regulations, llmProvider llm.Provider) *Analyzer {
	return &Analyzer{
		regulations: regulations,
		llmProvider: llmProvider,
	}
}

// Analyze produces a recyclability recommendation from a vision result, the
// user's description, or both. Retrieval failures never fail the analysis.
func (a *Analyzer) Analyze(ctx context.Context, visionResult *apimodels.VisionResult, userContext, location string) (*apimodels.AnalyzeResponse, error) {
	startTime := time.Now()
	log.Info().Str("location", location).Bool("hasVision", visionResult != nil).Msg("starting recyclability analysis")

	material, condition := describeMaterial(visionResult, userContext)

	var regulation *rag.RegulationResult
	if res := a.regulations.Query(ctx, material, location, condition, userContext); res.Available() {
		regulation = res.Regulation()
	} else {
		log.Info().Str("reason", res.Reason()).Msg("proceeding without retrieved regulations")
	}

	prompt, err := buildPrompt(visionResult, userContext, location, regulation)
	if err != nil {
		return nil, err
	}

	llmResp, err := a.llmProvider.Analyze(ctx,
		[]string{SystemPrompt},
		[]string{prompt},
		llm.WithJSON(),
	)
	if err != nil {
		log.Error().Err(err).Msg("LLM analysis failed")
		return nil, fmt.Errorf("LLM analysis failed: %w", err)
	}

	result, err := parseAnalyzeResponse(llmResp.Content)
	if err != nil {
		return nil, err
	}

	finalize(result, visionResult, location, regulation)

	log.Info().
		Str("bin", string(result.Bin)).
		Bool("isRecyclable", result.IsRecyclable).
		Int("facilities", len(result.Facilities)).
		Int64("tokensUsed", llmResp.Usage.TotalTokens).
		Dur("duration", time.Since(startTime)).
		Msg("recyclability analysis completed")

	return result, nil
}

// describeMaterial picks the retrieval query terms. Without a vision result
// the user's description stands in for the material.
func describeMaterial(v *apimodels.VisionResult, userContext string) (material, condition string) {
	if v != nil {
		return v.PrimaryMaterial, v.Condition
	}
	return strings.TrimSpace(userContext), ""
}

func buildPrompt(v *apimodels.VisionResult, userContext, location string, regulation *rag.RegulationResult) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Location: %s\n", location)
	if county := countyHint(location); county != "" {
		fmt.Fprintf(&b, "Focus on regulations for %s County, New York.\n", county)
	}

	if v != nil {
		visionJSON, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode vision result: %w", err)
		}
		fmt.Fprintf(&b, "\nImage analysis of the item:\n%s\n", visionJSON)
	}

	if c := strings.TrimSpace(userContext); c != "" {
		fmt.Fprintf(&b, "\nUser's description of the item:\n%s\n", c)
	}

	if regulation != nil && strings.TrimSpace(regulation.Regulations) != "" {
		fmt.Fprintf(&b, "\nLocal regulations retrieved for this location:\n%s\n", truncateString(regulation.Regulations, maxRegulationChars))
	} else {
		b.WriteString("\nNo local regulation documents are available for this location.\n")
	}

	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String(), nil
}

// countyHint returns the county for locations the regulation corpus covers.
func countyHint(location string) string {
	l := strings.ToLower(location)
	switch {
	case strings.Contains(l, "albany"):
		return "Albany"
	case strings.Contains(l, "tompkins"), strings.Contains(l, "ithaca"):
		return "Tompkins"
	default:
		return ""
	}
}

func parseAnalyzeResponse(text string) (*apimodels.AnalyzeResponse, error) {
	jsonStr, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recyclability response: %w", err)
	}

	var result apimodels.AnalyzeResponse
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse recyclability response: %w (response: %s)", err, truncateString(jsonStr, 500))
	}
	return &result, nil
}

func finalize(r *apimodels.AnalyzeResponse, v *apimodels.VisionResult, location string, regulation *rag.RegulationResult) {
	r.Bin = r.Bin.Normalize()
	if r.Confidence < 0 {
		r.Confidence = 0
	} else if r.Confidence > 1 {
		r.Confidence = 1
	}
	if strings.TrimSpace(r.LocationUsed) == "" {
		r.LocationUsed = location
	}
	if r.MaterialDescription == "" && v != nil {
		r.MaterialDescription = v.ShortDescription
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
	if r.Facilities == nil {
		r.Facilities = []apimodels.Facility{}
	}

	r.RagSources = nil
	if regulation != nil && len(regulation.Sources) > 0 {
		r.RagSources = dedupe(regulation.Sources)
	}
	r.WebSearchSources = dedupe(r.WebSearchSources)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "\n[truncated]"
	}
	return s
}
