package apimodels

// BinType is the disposal stream an item belongs in.
type BinType string

const (
	BinRecycling BinType = "recycling"
	BinLandfill  BinType = "landfill"
	BinCompost   BinType = "compost"
	BinHazardous BinType = "hazardous"
	BinUnknown   BinType = "unknown"
)

// Normalize maps anything outside the known bins to BinUnknown.
func (b BinType) Normalize() BinType {
	switch b {
	case BinRecycling, BinLandfill, BinCompost, BinHazardous:
		return b
	default:
		return BinUnknown
	}
}

type VisionResult struct {
	// Dominant material, e.g. "Plastic #1 (PET)"
	PrimaryMaterial    string   `json:"primaryMaterial"`
	SecondaryMaterials []string `json:"secondaryMaterials"`
	Category           string   `json:"category"`

	// clean, soiled, damaged...
	Condition    string   `json:"condition"`
	Contaminants []string `json:"contaminants"`

	// 0..1
	Confidence       float64 `json:"confidence"`
	ShortDescription string  `json:"shortDescription"`
}

type Facility struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	URL     string `json:"url"`
	Notes   string `json:"notes"`

	// [longitude, latitude]
	Coordinates *[2]float64 `json:"coordinates,omitempty"`
}

type AnalyzeResponse struct {
	IsRecyclable        bool       `json:"isRecyclable"`
	Category            string     `json:"category"`
	Bin                 BinType    `json:"bin"`
	Confidence          float64    `json:"confidence"`
	MaterialDescription string     `json:"materialDescription,omitempty"`
	Instructions        []string   `json:"instructions"`
	Reasoning           string     `json:"reasoning"`
	LocationUsed        string     `json:"locationUsed"`
	Facilities          []Facility `json:"facilities"`

	// Citation lists are URL data, not prose
	RagSources       []string `json:"ragSources,omitempty"`
	WebSearchSources []string `json:"webSearchSources,omitempty"`
}

// StageResponse wraps the result of a single pipeline stage.
type StageResponse[T any] struct {
	Stage  string `json:"stage"`
	Result T      `json:"result"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	RAG     RAGHealth `json:"rag"`
}

type RAGHealth struct {
	Configured bool `json:"configured"`
	Reachable  bool `json:"reachable"`
}
