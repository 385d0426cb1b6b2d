package image

import "context"

// ReferenceAsset is conditioning input for the generator, typically a brand
// logo the output must incorporate.
type ReferenceAsset struct {
	Name string
	MIME string
	URL  string
	Data []byte
}

// GenerateRequest is the normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt     string
	RequestID  string
	Locale     string
	References []ReferenceAsset
}

// Asset is one generated candidate image.
type Asset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// Generator is the image-generation capability consumed by the engine.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
