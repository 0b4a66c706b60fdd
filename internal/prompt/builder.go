package prompt

import (
	"fmt"
	"strings"

	"stylefit/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultNegativePrompt = "illustration, painting, cartoon, low quality, blur, distorted, disfigured, text, watermark, bad anatomy, bad hands, missing fingers, extra limbs, ugly, messy"

// ModelTokenResolver maps a model asset id to the trigger word embedded in
// the prompt (e.g. a fine-tuned identity token). Implemented by the model
// asset repository; a nil resolver falls back to a generic subject.
type ModelTokenResolver interface {
	TriggerWord(modelAssetID string) string
}

// Builder assembles positive and negative prompts for fashion renders.
// Variation requests share one prompt verbatim: randomness comes from the
// provider's sampling, never from prompt mutation.
type Builder struct {
	models ModelTokenResolver
	titled cases.Caser
}

func NewBuilder(models ModelTokenResolver) *Builder {
	return &Builder{
		models: models,
		titled: cases.Title(language.Und),
	}
}

// BuildPrompt renders the positive prompt: subject, garment descriptor, vibe
// scenery, then quality boosters, with the optional caller override appended.
func (b *Builder) BuildPrompt(spec domain.RenderSpec) string {
	token := "woman"
	if b.models != nil {
		if w := strings.TrimSpace(b.models.TriggerWord(spec.ModelAssetID)); w != "" {
			token = w
		}
	}

	product := strings.TrimSpace(fmt.Sprintf("%s %s %s", spec.Fit, spec.Color, spec.ProductCategory))
	if spec.SourceImageURL != "" {
		product += ", exact match to reference clothing, high fidelity texture"
	}

	prompt := fmt.Sprintf("photo of %s wearing %s, %s, 8k, photorealistic, masterpiece, high fashion photography, sharp focus",
		token, product, b.vibeDescription(spec.Vibe))

	if extra := strings.TrimSpace(spec.PositivePrompt); extra != "" {
		prompt += ", " + extra
	}
	return prompt
}

// BuildNegativePrompt returns the negative prompt, honoring a caller override.
func (b *Builder) BuildNegativePrompt(spec domain.RenderSpec) string {
	if override := strings.TrimSpace(spec.NegativePrompt); override != "" {
		return override
	}
	return defaultNegativePrompt
}

func (b *Builder) vibeDescription(vibe string) string {
	switch b.titled.String(strings.TrimSpace(vibe)) {
	case "Studio Minimal":
		return "clean studio background, soft lighting, minimal aesthetic, neutral colors"
	case "Urban Cinematic":
		return "busy city street background, cinematic lighting, depth of field, golden hour, bokeh"
	case "Architectural Luxury":
		return "modern luxury interior, marble walls, expensive furniture, elegant lighting, architectural digest style"
	case "Nature Organic":
		return "lush green nature background, outdoor fashion shoot, soft natural daylight, forest or garden setting"
	case "Sunset Warm":
		return "golden hour sunset background, warm orange and purple hues, beach or horizon, silhouette lighting, romantic atmosphere"
	default:
		return "clean studio background, professional lighting"
	}
}
