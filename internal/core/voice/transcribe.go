package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/colonyops/narrator/internal/core/audio"
)

const transcribeTimeout = 30 * time.Second

// WhisperTranscriber posts WAV audio to a whisper-server inference
// endpoint and returns the recognized text.
type WhisperTranscriber struct {
	url  string
	http *http.Client
}

// NewWhisperTranscriber creates a transcriber for the given inference URL.
func NewWhisperTranscriber(url string, client *http.Client) *WhisperTranscriber {
	if client == nil {
		client = &http.Client{Timeout: transcribeTimeout}
	}
	return &WhisperTranscriber{url: url, http: client}
}

// Transcribe uploads the samples as a WAV file and decodes the reply.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, samples []int16) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio.EncodeWAV(samples)); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode whisper reply: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
