// Package httpapi provides the HTTP API for the assistance service.
package httpapi

// AssistRequest is the payload for text and transcription assistance
type AssistRequest struct {
	Text     string `json:"text"`
	Skill    string `json:"skill,omitempty"`
	Language string `json:"language,omitempty"`
}

// ScreenshotRequest is the payload for screenshot assistance
type ScreenshotRequest struct {
	ImageBase64 string `json:"image_base64"`
	MIMEType    string `json:"mime_type,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Skill       string `json:"skill,omitempty"`
	Language    string `json:"language,omitempty"`
}

// CredentialsRequest rotates the upstream API key
type CredentialsRequest struct {
	APIKey string `json:"api_key"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
