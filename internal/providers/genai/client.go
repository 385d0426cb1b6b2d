package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"brandguard/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a lightweight facade over the Gemini generateContent API shared
// by the image generator and the compliance auditor. Without an API key it
// produces deterministic synthetic results so the engine stays fully
// operational in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Prompt          string
	RequestID       string
	Locale          string
	ReferenceImages []InlineImage
}

// InlineImage is image bytes attached to a request as conditioning input.
type InlineImage struct {
	MIME string
	Data []byte
}

// ImageAsset is the normalized generation result.
type ImageAsset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// AuditRequest asks the model to score an image against guideline rules,
// grouped by category.
type AuditRequest struct {
	Image     InlineImage
	Rules     map[string][]string
	RequestID string
}

// AuditVerdict is the structured JSON the audit prompt instructs the model
// to emit.
type AuditVerdict struct {
	Summary    string `json:"summary"`
	Categories []struct {
		Category   string   `json:"category"`
		Score      float64  `json:"score"`
		Violations []string `json:"violations"`
	} `json:"categories"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount   int    `json:"candidateCount,omitempty"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. A nil HTTP client
// is replaced by one with a conservative timeout.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateImage produces one image for the prompt, honoring any attached
// reference images. Without credentials a deterministic synthetic image is
// rendered instead.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return c.syntheticImage(req), nil
	}
	return c.remoteGenerateImage(ctx, req)
}

// AuditImage scores an image against the supplied rules. Without credentials
// a deterministic synthetic verdict is produced.
func (c *Client) AuditImage(ctx context.Context, req AuditRequest) (*AuditVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return c.syntheticVerdict(req), nil
	}
	return c.remoteAuditImage(ctx, req)
}

// generationPrompt folds the resolved locale hint into the instruction so
// remote generations render region-appropriate text and imagery.
func generationPrompt(req ImageRequest) string {
	if req.Locale == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nTarget audience locale: " + req.Locale + "."
}

func (c *Client) remoteGenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	parts := []geminiPart{{Text: generationPrompt(req)}}
	for _, ref := range req.ReferenceImages {
		if len(ref.Data) == 0 {
			continue
		}
		mime := ref.MIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}

	payload := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{CandidateCount: 1},
	}

	var response geminiResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			format := part.InlineData.MimeType
			if format == "" {
				format = "image/png"
			}
			w, h := decodeImageDimensions(data)
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Msg("genai: generated remote image")
			return &ImageAsset{Format: format, Width: w, Height: h, Data: data}, nil
		}
	}
	return nil, fmt.Errorf("no image content returned")
}

func (c *Client) remoteAuditImage(ctx context.Context, req AuditRequest) (*AuditVerdict, error) {
	mime := req.Image.MIME
	if mime == "" {
		mime = "image/png"
	}
	parts := []geminiPart{
		{Text: buildAuditPrompt(req.Rules)},
		{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
		}},
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			var verdict AuditVerdict
			if err := json.Unmarshal([]byte(part.Text), &verdict); err != nil {
				return nil, fmt.Errorf("decode audit verdict: %w", err)
			}
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Int("categories", len(verdict.Categories)).
				Msg("genai: audited image")
			return &verdict, nil
		}
	}
	return nil, fmt.Errorf("no audit verdict returned")
}

func buildAuditPrompt(rules map[string][]string) string {
	var b strings.Builder
	b.WriteString("Audit the attached image against the brand guideline rules below. ")
	b.WriteString("Respond with JSON {\"summary\": string, \"categories\": [{\"category\": string, \"score\": number 0-100, \"violations\": [string]}]} ")
	b.WriteString("covering exactly the listed categories.\n")
	categories := make([]string, 0, len(rules))
	for category := range rules {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		b.WriteString("\n[" + category + "]\n")
		for _, t := range rules[category] {
			b.WriteString("- " + t + "\n")
		}
	}
	return b.String()
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) syntheticImage(req ImageRequest) *ImageAsset {
	seed := deterministicSeed(req.RequestID, req.Prompt, req.Locale)
	data := renderSyntheticImage(1024, 1024, seed)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Msg("genai: generated synthetic image")
	return &ImageAsset{Format: "image/png", Width: 1024, Height: 1024, Data: data}
}

func (c *Client) syntheticVerdict(req AuditRequest) *AuditVerdict {
	seed := deterministicSeed(req.RequestID, fmt.Sprint(len(req.Image.Data)))
	categories := make([]string, 0, len(req.Rules))
	for category := range req.Rules {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	verdict := &AuditVerdict{Summary: "synthetic audit"}
	for i, category := range categories {
		score := 70 + float64((seed+uint64(i)*7)%31)
		verdict.Categories = append(verdict.Categories, struct {
			Category   string   `json:"category"`
			Score      float64  `json:"score"`
			Violations []string `json:"violations"`
		}{Category: category, Score: score})
	}
	return verdict
}

func deterministicSeed(parts ...string) uint64 {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	var seed uint64
	for i := 0; i < 8; i++ {
		seed = seed<<8 | uint64(h[i])
	}
	return seed
}

func renderSyntheticImage(width, height int, seed uint64) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{
		R: uint8(seed >> 16),
		G: uint8(seed >> 8),
		B: uint8(seed),
		A: 255,
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
