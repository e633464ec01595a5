package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quarryops/ticketscan/internal/common"
)

// CompleteVision implements llm.VisionClient over chat/completions. The
// prompt goes in as a text content part followed by one image_url part per
// data URL.
func (c *Client) CompleteVision(ctx context.Context, prompt string, imageDataURLs []string) (string, error) {
	if !c.Configured() {
		return "", common.ConfigurationError("vision model API key is not set")
	}

	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.vision.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"images", len(imageDataURLs),
		"prompt_len", len(prompt),
	)

	content := []map[string]any{
		{"type": "text", "text": prompt},
	}
	for _, u := range imageDataURLs {
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": u},
		})
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("llm.vision.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w: %v", common.ErrExternalService, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.vision.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w: decode response: %v", common.ErrExternalService, err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.vision.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w: no choices in response", common.ErrExternalService)
	}

	text := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.vision.ok",
		"req_id", rid,
		"response_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("vision response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
