package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/transcribefree/backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Model:   "whisper-1",
	})
	return client, server
}

func TestTranscribeSuccess(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world","language":"en","duration":4.2,"segments":[{"start":0,"end":4.2,"text":"hello world"}]}`))
	})

	result, err := client.Transcribe(context.Background(), strings.NewReader("RIFFdata"), "clip.wav", "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hello world" || result.Language != "en" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Segments) != 1 || result.Segments[0].End != 4.2 {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
}

func TestTranscribeStatusClassification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		status int
		body   string
		want   FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`, FailureAuth},
		{"credential shaped 500", http.StatusInternalServerError, `{"error":{"message":"API configuration error"}}`, FailureAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, FailureNetwork},
		{"bad media", http.StatusBadRequest, `{"error":{"message":"Invalid file format"}}`, FailureFormat},
		{"upstream failure", http.StatusBadGateway, `bad gateway`, FailureUnknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := client.Transcribe(context.Background(), strings.NewReader("x"), "clip.mp3", "audio/mpeg")
			apiErr := AsAPIError(err)
			if apiErr == nil {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", apiErr.Kind, tc.want)
			}
			if apiErr.Status != tc.status {
				t.Fatalf("status = %d, want %d", apiErr.Status, tc.status)
			}
		})
	}
}

func TestTranscribeTimeout(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Transcribe(ctx, strings.NewReader("x"), "clip.mp3", "audio/mpeg")
	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Kind != FailureTimeout {
		t.Fatalf("kind = %s, want %s", apiErr.Kind, FailureTimeout)
	}
}

func TestTranscribeUnconfigured(t *testing.T) {
	t.Parallel()
	client := NewClient(config.OpenAIConfig{BaseURL: "http://localhost", Model: "whisper-1"})
	_, err := client.Transcribe(context.Background(), strings.NewReader("x"), "clip.mp3", "audio/mpeg")
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.Kind != FailureAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
}
