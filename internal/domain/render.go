package domain

const (
	DefaultRenderWidth  = 1080
	DefaultRenderHeight = 1350
	DefaultVibe         = "Studio Minimal"
)

// RenderSpec carries the parameters of one fashion render. It is transient:
// the orchestrator clones it per variation and it is never persisted.
type RenderSpec struct {
	ProductCategory string `json:"product_category"`
	Fit             string `json:"fit"`
	Color           string `json:"color"`
	Vibe            string `json:"vibe"`
	ModelAssetID    string `json:"model_asset_id"`
	SourceImageURL  string `json:"source_image_url,omitempty"`
	ModelImageURL   string `json:"model_image_url,omitempty"`
	PositivePrompt  string `json:"positive_prompt,omitempty"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	NumberOfImages  int    `json:"number_of_images"`
}

// Normalize fills defaults for omitted fields.
func (s *RenderSpec) Normalize() {
	if s.Fit == "" {
		s.Fit = "regular"
	}
	if s.Color == "" {
		s.Color = "original"
	}
	if s.Vibe == "" {
		s.Vibe = DefaultVibe
	}
	if s.Width <= 0 {
		s.Width = DefaultRenderWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultRenderHeight
	}
	if s.NumberOfImages <= 0 {
		s.NumberOfImages = 1
	}
}

// Clone returns an independent copy sharing all parameters. Variations differ
// only through the provider's own sampling randomness, never through prompt
// mutation.
func (s RenderSpec) Clone() RenderSpec {
	return s
}
