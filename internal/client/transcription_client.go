package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/clearwave/api/internal/config"
)

// TranscriptionClient hands audio off to the external speech-to-text service.
// The service posts its result back to the callback URL; nothing blocks here.
type TranscriptionClient struct {
	serviceURL string
	httpClient *http.Client
}

func NewTranscriptionClient(cfg *config.TranscriptionConfig) *TranscriptionClient {
	return &TranscriptionClient{
		serviceURL: cfg.ServiceURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type transcriptionRequest struct {
	File           string `json:"file"`
	ResponseFormat string `json:"response_format"`
	CallbackURL    string `json:"callback_url"`
	Language       string `json:"language,omitempty"`
}

// Submit asks the service to transcribe the audio at fileURL and deliver the
// result to callbackURL. Server errors are retried briefly; the caller treats a
// final failure as a dispatch-time error.
func (c *TranscriptionClient) Submit(ctx context.Context, fileURL, callbackURL, language string) error {
	payload, err := json.Marshal(transcriptionRequest{
		File:           fileURL,
		ResponseFormat: "json",
		CallbackURL:    callbackURL,
		Language:       language,
	})
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("transcription service error: %s", string(body))
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("transcription request rejected: %s", string(body)))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("submit transcription: %w", err)
	}
	return nil
}
