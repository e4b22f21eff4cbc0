package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"

	"github.com/sozercan/recyclens/apimodels"
	"github.com/sozercan/recyclens/internal/llm"
)

var ErrInvalidImage = errors.New("invalid image")

var systemPrompt = strings.TrimSpace(dedent.Dedent(`
	You are a materials classifier for a recycling assistant. You look at a
	photo of a single discarded item and describe what it is made of and what
	state it is in. You never give disposal advice.`))

var userPrompt = strings.TrimSpace(dedent.Dedent(`
	Classify the item in this image.

	Respond in JSON format with these fields:
	- primaryMaterial: the dominant material, as specific as possible (e.g. "Plastic #1 (PET)", "Corrugated cardboard", "Aluminum")
	- secondaryMaterials: other materials present (labels, caps, liners), empty list if none
	- category: what kind of item it is (e.g. "Food container", "Beverage bottle", "Battery")
	- condition: one of "clean", "lightly soiled", "heavily soiled", "damaged", "unknown"
	- contaminants: visible contaminants such as food residue or grease, empty list if none
	- confidence: your confidence in the primary material, from 0 to 1
	- shortDescription: one sentence describing the item

	Example response:
	{"primaryMaterial": "Plastic #1 (PET)", "secondaryMaterials": ["Paper label"], "category": "Food container", "condition": "lightly soiled", "contaminants": ["food residue"], "confidence": 0.86, "shortDescription": "A clear hinged plastic clamshell with some salad residue."}

	Respond ONLY with the JSON object, no markdown or other text.`))

// Classifier turns an item photo into a VisionResult using a multimodal model.
type Classifier struct {
	provider llm.Provider
}

func New(provider llm.Provider) *Classifier {
	return &Classifier{provider: provider}
}

// Analyze classifies a base64 image, given either as a data URL or as bare
// base64.
func (c *Classifier) Analyze(ctx context.Context, image string) (*apimodels.VisionResult, error) {
	img, err := DecodeImage(image)
	if err != nil {
		return nil, err
	}

	log.Info().Str("mimeType", img.MIMEType).Int("bytes", len(img.Data)).Msg("starting vision analysis")

	resp, err := c.provider.Analyze(ctx,
		[]string{systemPrompt},
		[]string{userPrompt},
		llm.WithImages(img),
		llm.WithJSON(),
	)
	if err != nil {
		return nil, fmt.Errorf("vision model call failed: %w", err)
	}

	result, err := parseVisionResult(resp.Content)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("primaryMaterial", result.PrimaryMaterial).
		Str("condition", result.Condition).
		Float64("confidence", result.Confidence).
		Msg("vision analysis completed")

	return result, nil
}

// DecodeImage decodes a data URL or bare base64 string and detects its
// MIME type from content. Only image types are accepted.
func DecodeImage(image string) (llm.Image, error) {
	payload := strings.TrimSpace(image)
	declared := ""
	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return llm.Image{}, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: not valid base64", ErrInvalidImage)
	}
	if len(data) == 0 {
		return llm.Image{}, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		if strings.HasPrefix(declared, "image/") {
			// formats DetectContentType doesn't know, e.g. HEIC
			mimeType = declared
		} else {
			return llm.Image{}, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mimeType)
		}
	}

	return llm.Image{Data: data, MIMEType: mimeType}, nil
}

func parseVisionResult(text string) (*apimodels.VisionResult, error) {
	jsonStr, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vision response: %w", err)
	}

	var result apimodels.VisionResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse vision response: %w (response: %s)", err, jsonStr)
	}

	if result.SecondaryMaterials == nil {
		result.SecondaryMaterials = []string{}
	}
	if result.Contaminants == nil {
		result.Contaminants = []string{}
	}
	result.Confidence = clamp01(result.Confidence)

	return &result, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
