package asr

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/lexiqai/voice-character/internal/faults"
)

func deepgramResponse(transcript string) map[string]any {
	return map[string]any{
		"request_id": "req-1",
		"results": map[string]any{
			"channels": []any{
				map[string]any{
					"alternatives": []any{
						map[string]any{"transcript": transcript, "confidence": 0.98},
					},
				},
			},
		},
	}
}

func TestDeepgram_Success(t *testing.T) {
	c := NewDeepgramClient(testConfig(""))

	var staged string
	c.fromFile = func(ctx context.Context, path string) (any, error) {
		staged = path
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Expected staged file to exist: %v", err)
		}
		if len(data) != len(testBlob().Data) {
			t.Errorf("Expected %d staged bytes, got %d", len(testBlob().Data), len(data))
		}
		return deepgramResponse("hello world"), nil
	}

	text, err := c.Transcribe(context.Background(), testBlob())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected transcript, got %q", text)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("Expected staged file to be removed")
	}
}

func TestDeepgram_Failures(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		err      error
		expected faults.Kind
	}{
		{"unauthorized", nil, errors.New("DeepgramError: 401 INVALID_AUTH: Invalid credentials"), faults.Unauthorized},
		{"network", nil, errors.New("dial tcp: connection refused"), faults.NetworkFailure},
		{"no results", map[string]any{"request_id": "x"}, nil, faults.MalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDeepgramClient(testConfig(""))
			var staged string
			c.fromFile = func(ctx context.Context, path string) (any, error) {
				staged = path
				return tt.result, tt.err
			}

			_, err := c.Transcribe(context.Background(), testBlob())
			if !faults.Is(err, tt.expected) {
				t.Errorf("Expected %s, got %v", tt.expected, err)
			}
			if _, statErr := os.Stat(staged); !os.IsNotExist(statErr) {
				t.Error("Expected staged file to be removed on failure")
			}
		})
	}
}

func TestDeepgram_NoAlternativesIsEmptyTranscript(t *testing.T) {
	c := NewDeepgramClient(testConfig(""))
	c.fromFile = func(ctx context.Context, path string) (any, error) {
		return map[string]any{"results": map[string]any{"channels": []any{}}}, nil
	}

	text, err := c.Transcribe(context.Background(), testBlob())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty transcript, got %q", text)
	}
}

func TestDeepgram_MissingKey(t *testing.T) {
	cfg := testConfig("")
	cfg.DeepgramAPIKey = ""
	c := NewDeepgramClient(cfg)
	c.fromFile = func(ctx context.Context, path string) (any, error) {
		t.Fatal("Expected no SDK call without a key")
		return nil, nil
	}

	if _, err := c.Transcribe(context.Background(), testBlob()); !faults.Is(err, faults.Unauthorized) {
		t.Errorf("Expected Unauthorized, got %v", err)
	}
}
