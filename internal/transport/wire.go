package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"promptrelay/internal/domain"
)

// HTTPError describes a non-success upstream status. The preview keeps
// enough body to diagnose without flooding logs.
type HTTPError struct {
	StatusCode  int
	Status      string
	BodyPreview string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Status, e.BodyPreview)
}

// encodeRequest serializes a completion request onto the wire contract
func encodeRequest(req domain.CompletionRequest) map[string]any {
	var contents []map[string]any
	for _, turn := range req.Turns {
		var parts []map[string]any
		for _, part := range turn.Parts {
			if part.InlineData != nil {
				parts = append(parts, map[string]any{
					"inlineData": map[string]string{
						"mimeType": part.InlineData.MIMEType,
						"data":     base64.StdEncoding.EncodeToString(part.InlineData.Data),
					},
				})
			}
			if part.Text != "" {
				parts = append(parts, map[string]any{"text": part.Text})
			}
		}
		if len(parts) > 0 {
			contents = append(contents, map[string]any{
				"role":  turn.Role,
				"parts": parts,
			})
		}
	}

	wireReq := map[string]any{"contents": contents}

	if req.SystemInstruction != "" {
		wireReq["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": req.SystemInstruction}},
		}
	}

	generationConfig := map[string]any{}
	if req.Generation.Temperature > 0 {
		generationConfig["temperature"] = req.Generation.Temperature
	}
	if req.Generation.MaxOutputTokens > 0 {
		generationConfig["maxOutputTokens"] = req.Generation.MaxOutputTokens
	}
	if req.Generation.TopK > 0 {
		generationConfig["topK"] = req.Generation.TopK
	}
	if req.Generation.TopP > 0 {
		generationConfig["topP"] = req.Generation.TopP
	}
	if len(generationConfig) > 0 {
		wireReq["generationConfig"] = generationConfig
	}

	return wireReq
}

// extractText pulls the reply text out of an upstream response body.
// The text lives at candidates[0].content.parts[0].text; any absent
// segment on that path is a malformed response.
func extractText(data []byte) (string, error) {
	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text *string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", domain.ErrMalformedResponse)
	}

	candidate := result.Candidates[0]

	// Abnormal termination still carries usable text; surface it and warn
	if reason := candidate.FinishReason; reason != "" && reason != "STOP" {
		slog.Warn("Upstream finished abnormally", "finish_reason", reason)
	}

	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no parts", domain.ErrMalformedResponse)
	}

	text := candidate.Content.Parts[0].Text
	if text == nil {
		return "", fmt.Errorf("%w: first part carries no text", domain.ErrMalformedResponse)
	}

	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return "", domain.ErrEmptyResponse
	}

	return trimmed, nil
}

// roundTrip performs one delivery over the given client
func roundTrip(ctx context.Context, client *http.Client, req domain.CompletionRequest, endpoint Endpoint, headers map[string]string) (string, error) {
	body, err := json.Marshal(encodeRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			BodyPreview: truncateStr(string(respBody), 500),
		}
	}

	return extractText(respBody)
}

// truncateStr truncates a string to maxLen chars
func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
