package image

import (
	"context"
	"fmt"

	"brandguard/internal/domain"
	"brandguard/internal/providers/genai"
)

// GeminiGenerator adapts the shared Gemini client to the Generator contract.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	refs := make([]genai.InlineImage, 0, len(req.References))
	for _, ref := range req.References {
		if len(ref.Data) == 0 {
			continue
		}
		refs = append(refs, genai.InlineImage{MIME: ref.MIME, Data: ref.Data})
	}
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Prompt:          req.Prompt,
		RequestID:       req.RequestID,
		Locale:          req.Locale,
		ReferenceImages: refs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	return &Asset{
		URL:    asset.URL,
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
