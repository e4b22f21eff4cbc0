package apimodels

import (
	"encoding/json"
	"strings"
)

type AnalyzeRequest struct {
	// Base64 image, optionally as a data URL. Either Image or Context is required.
	Image string `json:"image,omitempty"`

	// Location is the user's city, state or ZIP code
	Location string `json:"location"`

	// Context is free text from the user describing the item
	Context string `json:"context,omitempty"`
}

type VisionRequest struct {
	Image string `json:"image"`
}

type RecyclabilityRequest struct {
	VisionResult *VisionResult `json:"visionResult,omitempty"`
	Location     string        `json:"location"`
	Context      string        `json:"context,omitempty"`
}

// HasLocation reports whether location is non-empty after trimming.
func HasLocation(location string) bool {
	return strings.TrimSpace(location) != ""
}

// StringField extracts a string from a raw JSON field. ok is false when the
// field is absent, null, not a string, or empty.
func StringField(raw json.RawMessage) (s string, ok bool) {
	if len(raw) == 0 {
		return "", false
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, s != ""
}
