package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hubenschmidt/stream-context/internal/metrics"
)

// FrameAnalyzer turns a captured screen frame into descriptive text for
// the context window.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, jpegBytes []byte) (string, error)
}

const defaultVisionPrompt = "Describe the visible screen content, including any readable text. Be concise."

// VisionClient describes screen frames via an Ollama vision model
// (/api/generate with an attached image).
type VisionClient struct {
	url    string
	model  string
	prompt string
	client *http.Client
}

// NewVisionClient creates an Ollama vision analysis client. An empty
// prompt selects the default screen-description prompt.
func NewVisionClient(url, model, prompt string, poolSize int) *VisionClient {
	if prompt == "" {
		prompt = defaultVisionPrompt
	}
	return &VisionClient{
		url:    url,
		model:  model,
		prompt: prompt,
		client: NewPooledHTTPClient(poolSize, 60*time.Second),
	}
}

// Analyze sends the JPEG frame to the vision model and returns its
// description of the screen content.
func (c *VisionClient) Analyze(ctx context.Context, jpegBytes []byte) (string, error) {
	start := time.Now()

	body, err := json.Marshal(visionRequest{
		Model:  c.model,
		Prompt: c.prompt,
		Images: []string{base64.StdEncoding.EncodeToString(jpegBytes)},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("vision").Inc()
		return "", fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("vision").Inc()
		return "", fmt.Errorf("vision status %d", resp.StatusCode)
	}

	var result visionResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode vision response: %w", err)
	}

	metrics.FrameAnalysisDuration.Observe(time.Since(start).Seconds())
	return result.Response, nil
}

type visionRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type visionResponse struct {
	Response string `json:"response"`
}
