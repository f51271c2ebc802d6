package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hubenschmidt/stream-context/internal/audio"
	"github.com/hubenschmidt/stream-context/internal/metrics"
)

// Transcriber produces transcript text from audio samples.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// WhisperClient sends audio as multipart WAV to a whisper-compatible HTTP
// endpoint (/inference for whisper.cpp's server) and returns the transcript.
type WhisperClient struct {
	url    string
	client *http.Client
}

// NewWhisperClient creates a client for a whisper.cpp server.
func NewWhisperClient(url string, poolSize int) *WhisperClient {
	return &WhisperClient{
		url:    url,
		client: NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

// Warmup sends a short silent clip to verify the server is responsive.
func (c *WhisperClient) Warmup(ctx context.Context) error {
	silence := make([]float32, 16000) // 1 second of silence at 16kHz
	body, contentType, err := buildMultipartAudio(silence)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/inference", body)
	if err != nil {
		return fmt.Errorf("create warmup request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper warmup: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper warmup status %d", resp.StatusCode)
	}
	return nil
}

// Transcribe sends float32 audio samples (16kHz mono) as multipart WAV and
// returns the transcript text.
func (c *WhisperClient) Transcribe(ctx context.Context, samples []float32) (string, error) {
	start := time.Now()

	body, contentType, err := buildMultipartAudio(samples)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("create whisper request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("stt").Inc()
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("stt").Inc()
		return "", fmt.Errorf("whisper status %d: %s", resp.StatusCode, string(respBody))
	}

	var result whisperResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}

	metrics.TranscribeDuration.Observe(time.Since(start).Seconds())
	return result.Text, nil
}

type whisperResponse struct {
	Text string `json:"text"`
}

func buildMultipartAudio(samples []float32) (*bytes.Buffer, string, error) {
	wavData := audio.SamplesToWAV(samples, 16000)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}

	if _, err = part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
