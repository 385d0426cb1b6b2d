package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSyntheticImageDeterministic(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatal(err)
	}
	req := ImageRequest{Prompt: "a summer banner", RequestID: "job-1", Locale: "en"}

	first, err := c.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("synthetic output must be deterministic for identical requests")
	}
	if first.Format != "image/png" || first.Width != 1024 || first.Height != 1024 {
		t.Fatalf("asset metadata wrong: %+v", first)
	}

	other, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a winter banner", RequestID: "job-1"})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first.Data, other.Data) {
		t.Fatal("different prompts must produce different synthetic images")
	}
}

func TestSyntheticVerdict(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatal(err)
	}
	verdict, err := c.AuditImage(context.Background(), AuditRequest{
		Image:     InlineImage{MIME: "image/png", Data: []byte("img")},
		RequestID: "job-1",
		Rules: map[string][]string{
			"typography": {"Use the brand font."},
			"colors":     {"Primary palette only."},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(verdict.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(verdict.Categories))
	}
	if verdict.Categories[0].Category != "colors" || verdict.Categories[1].Category != "typography" {
		t.Fatalf("categories not in stable order: %+v", verdict.Categories)
	}
	for _, cat := range verdict.Categories {
		if cat.Score < 70 || cat.Score > 100 {
			t.Fatalf("score %v out of synthetic range", cat.Score)
		}
	}
}

func TestRemoteGenerateImage(t *testing.T) {
	imageData := []byte("generated-image")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("parts = %+v, want prompt plus one reference", req.Contents)
		}
		_ = json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []struct {
				Content      geminiContent `json:"content"`
				FinishReason string        `json:"finishReason,omitempty"`
			}{{
				Content: geminiContent{Parts: []geminiPart{{InlineData: &geminiInlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(imageData),
				}}}},
			}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	asset, err := c.GenerateImage(context.Background(), ImageRequest{
		Prompt:          "a banner",
		RequestID:       "job-1",
		ReferenceImages: []InlineImage{{MIME: "image/png", Data: []byte("logo")}},
	})
	if err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if !bytes.Equal(asset.Data, imageData) || asset.Format != "image/png" {
		t.Fatalf("asset wrong: %+v", asset)
	}
}

func TestRemoteAuditImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict := `{"summary":"Colors drift from the palette.","categories":[{"category":"colors","score":55,"violations":["Background is off-palette."]}]}`
		_ = json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []struct {
				Content      geminiContent `json:"content"`
				FinishReason string        `json:"finishReason,omitempty"`
			}{{
				Content: geminiContent{Parts: []geminiPart{{Text: verdict}}},
			}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	verdict, err := c.AuditImage(context.Background(), AuditRequest{
		Image: InlineImage{Data: []byte("img")},
		Rules: map[string][]string{"colors": {"Primary palette only."}},
	})
	if err != nil {
		t.Fatalf("AuditImage() error: %v", err)
	}
	if verdict.Summary != "Colors drift from the palette." {
		t.Fatalf("summary = %q", verdict.Summary)
	}
	if len(verdict.Categories) != 1 || verdict.Categories[0].Score != 55 {
		t.Fatalf("categories wrong: %+v", verdict.Categories)
	}
}

func TestRemoteGenerateIncludesLocaleHint(t *testing.T) {
	var promptText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) == 1 && len(req.Contents[0].Parts) > 0 {
			promptText = req.Contents[0].Parts[0].Text
		}
		_ = json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []struct {
				Content      geminiContent `json:"content"`
				FinishReason string        `json:"finishReason,omitempty"`
			}{{
				Content: geminiContent{Parts: []geminiPart{{InlineData: &geminiInlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString([]byte("img")),
				}}}},
			}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a banner", Locale: "fr"}); err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if !strings.HasPrefix(promptText, "a banner") || !strings.Contains(promptText, "locale: fr") {
		t.Fatalf("prompt = %q, want locale hint appended", promptText)
	}

	if _, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "a banner"}); err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if promptText != "a banner" {
		t.Fatalf("prompt = %q, want untouched without a locale", promptText)
	}
}

func TestRemoteErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GenerateImage(context.Background(), ImageRequest{Prompt: "a banner"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want quota message", err)
	}
}

func TestBuildAuditPromptStableOrder(t *testing.T) {
	prompt := buildAuditPrompt(map[string][]string{
		"typography": {"Use the brand font."},
		"colors":     {"Primary palette only."},
		"layout":     {"Keep the safe margins."},
	})
	iColors := strings.Index(prompt, "[colors]")
	iLayout := strings.Index(prompt, "[layout]")
	iTypo := strings.Index(prompt, "[typography]")
	if iColors < 0 || iLayout < 0 || iTypo < 0 {
		t.Fatalf("categories missing from prompt:\n%s", prompt)
	}
	if !(iColors < iLayout && iLayout < iTypo) {
		t.Fatal("categories must be emitted in sorted order")
	}
}
