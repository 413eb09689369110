package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/transcribefree/backend/pkg/config"
)

// FailureKind is the closed set of transcription failure classes. Callers
// switch over these instead of sniffing error message text.
type FailureKind string

const (
	FailureAuth    FailureKind = "auth"
	FailureNetwork FailureKind = "network"
	FailureTimeout FailureKind = "timeout"
	FailureFormat  FailureKind = "format"
	FailureUnknown FailureKind = "unknown"
)

// APIError is the typed error produced by the Whisper adapter.
type APIError struct {
	Kind    FailureKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("whisper %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("whisper %s: %s", e.Kind, e.Message)
}

// AsAPIError unwraps err into an *APIError if one is present.
func AsAPIError(err error) *APIError {
	var typed *APIError
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// Segment is one timed slice of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the verbose_json response shape from the audio API.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Client talks to the OpenAI audio transcription endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient builds a Whisper client from configuration. The HTTP client has
// no global timeout; per-request deadlines come from the caller's context.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
	}
}

// Configured reports whether the client has credentials to call the API.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Transcribe submits media as multipart form data and decodes the
// verbose_json response. All failures come back as *APIError.
func (c *Client) Transcribe(ctx context.Context, media io.Reader, fileName, mimeType string) (*Transcription, error) {
	if !c.Configured() {
		return nil, &APIError{Kind: FailureAuth, Message: "no API key configured"}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreatePart(fileHeader(fileName, mimeType))
	if err != nil {
		return nil, &APIError{Kind: FailureUnknown, Message: fmt.Sprintf("build multipart: %v", err)}
	}
	if _, err := io.Copy(part, media); err != nil {
		return nil, &APIError{Kind: FailureUnknown, Message: fmt.Sprintf("copy media: %v", err)}
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, &APIError{Kind: FailureUnknown, Message: fmt.Sprintf("write field: %v", err)}
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, &APIError{Kind: FailureUnknown, Message: fmt.Sprintf("write field: %v", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &APIError{Kind: FailureUnknown, Message: fmt.Sprintf("close multipart: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, &APIError{Kind: FailureUnknown, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatusError(resp)
	}

	var result Transcription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{Kind: FailureUnknown, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return &result, nil
}

func fileHeader(fileName, mimeType string) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	return h
}

func classifyTransportError(err error) *APIError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Kind: FailureTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &APIError{Kind: FailureTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &APIError{Kind: FailureTimeout, Message: err.Error()}
		}
		return &APIError{Kind: FailureNetwork, Message: err.Error()}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &APIError{Kind: FailureNetwork, Message: err.Error()}
	}
	return &APIError{Kind: FailureNetwork, Message: err.Error()}
}

// classifyStatusError maps HTTP error responses onto the failure taxonomy.
// Credential-shaped 500s happen when the upstream proxy swallows the real
// auth status, so those fold into FailureAuth as well.
func classifyStatusError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	message := strings.TrimSpace(string(raw))
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &APIError{Kind: FailureAuth, Status: resp.StatusCode, Message: message}
	case resp.StatusCode >= 500 && credentialShaped(message):
		return &APIError{Kind: FailureAuth, Status: resp.StatusCode, Message: message}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{Kind: FailureNetwork, Status: resp.StatusCode, Message: message}
	case resp.StatusCode == http.StatusRequestTimeout:
		return &APIError{Kind: FailureTimeout, Status: resp.StatusCode, Message: message}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &APIError{Kind: FailureFormat, Status: resp.StatusCode, Message: message}
	default:
		return &APIError{Kind: FailureUnknown, Status: resp.StatusCode, Message: message}
	}
}

func credentialShaped(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "api key") ||
		strings.Contains(lower, "api configuration error") ||
		strings.Contains(lower, "incorrect api key") ||
		strings.Contains(lower, "invalid authentication")
}
