package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/voice-character/internal/asr"
	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/chat"
	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/pipeline"
	"github.com/lexiqai/voice-character/internal/tts"
)

// collaborators fakes the transcription and external chat services
func collaborators(t *testing.T, transcript, reply string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": transcript})
	})
	mux.HandleFunc("/api/chat/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": reply})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		MaxUploadBytes:             1 << 20,
		ASRBackend:                 config.ASRBackendWhisper,
		GroqAPIKey:                 "test-key",
		GroqBaseURL:                baseURL,
		WhisperModel:               "whisper-large-v3",
		ChatBackend:                config.ChatBackendExternal,
		CharacterName:              "Ursy",
		ExternalChatURL:            baseURL + "/api/chat/",
		ExternalChatUsername:       "user",
		ExternalChatPassword:       "pass",
		ExternalChatReplyField:     "response",
		ChatSessionID:              "test",
		CollaboratorTimeout:        5,
		TTSBackend:                 config.TTSBackendSilent,
		CaptureMinMs:               500,
		CaptureMaxMs:               5000,
		CircuitBreakerMaxFailures:  100,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           2,
		RetryInitialBackoff:        1,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	transcriber, err := asr.New(cfg)
	if err != nil {
		t.Fatalf("asr.New failed: %v", err)
	}
	responder, err := chat.New(cfg)
	if err != nil {
		t.Fatalf("chat.New failed: %v", err)
	}

	srv, err := NewServer(cfg, pipeline.New(transcriber, responder, tts.Silent{}))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	mux := http.NewServeMux()
	srv.Register(mux)
	return mux
}

func wavClip() []byte {
	return audio.EncodeWAV(make([]byte, 3200), audio.DefaultFormat())
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "recording.wav")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/process_audio", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestProcessAudio_NoFile(t *testing.T) {
	handler := newTestServer(t, testConfig("http://example.invalid"))

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"wrong field", uploadRequest(t, "file", wavClip())},
		{"empty file", uploadRequest(t, AudioField, nil)},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/process_audio", strings.NewReader("{}"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
			if body := decode[ErrorResponse](t, rec); body.Error != "No audio file provided" {
				t.Errorf("Unexpected error %q", body.Error)
			}
		})
	}
}

func TestProcessAudio_KeyMissing(t *testing.T) {
	srv := collaborators(t, "hello", "hi there")
	cfg := testConfig(srv.URL)
	cfg.GroqAPIKey = ""

	rec := httptest.NewRecorder()
	newTestServer(t, cfg).ServeHTTP(rec, uploadRequest(t, AudioField, wavClip()))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if body := decode[ErrorResponse](t, rec); body.Error != "Server API key is missing." {
		t.Errorf("Unexpected error %q", body.Error)
	}
}

func TestProcessAudio_EndToEnd(t *testing.T) {
	srv := collaborators(t, "hello", "hi there")

	rec := httptest.NewRecorder()
	newTestServer(t, testConfig(srv.URL)).ServeHTTP(rec, uploadRequest(t, AudioField, wavClip()))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[ProcessResponse](t, rec)
	if body.UserPrompt != "hello" || body.LLMResponse != "hi there" {
		t.Errorf("Unexpected body %+v", body)
	}
	if rec.Header().Get("X-Interaction-ID") == "" {
		t.Error("Expected an interaction id header")
	}
}

func TestProcessAudio_NoSpeech(t *testing.T) {
	srv := collaborators(t, "  ", "unused")

	rec := httptest.NewRecorder()
	newTestServer(t, testConfig(srv.URL)).ServeHTTP(rec, uploadRequest(t, AudioField, wavClip()))

	body := decode[ProcessResponse](t, rec)
	if body.UserPrompt != "No clear speech detected." ||
		body.LLMResponse != "I didn't quite catch that. Could you please speak up?" {
		t.Errorf("Unexpected body %+v", body)
	}
}

func TestProcessAudio_ChatUnreachable(t *testing.T) {
	srv := collaborators(t, "hello", "unused")

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	cfg := testConfig(srv.URL)
	cfg.ExternalChatURL = downURL + "/api/chat/"

	rec := httptest.NewRecorder()
	newTestServer(t, cfg).ServeHTTP(rec, uploadRequest(t, AudioField, wavClip()))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[ProcessResponse](t, rec)
	if body.UserPrompt != "hello" {
		t.Errorf("Unexpected prompt %q", body.UserPrompt)
	}
	if body.LLMResponse != faults.ReplyCannotConnect {
		t.Errorf("Expected a legible apology, got %q", body.LLMResponse)
	}
	if strings.Contains(body.LLMResponse, "dial tcp") || strings.Contains(body.LLMResponse, "goroutine") {
		t.Errorf("Expected no raw error in the reply, got %q", body.LLMResponse)
	}
}

func TestProcessAudio_TooLarge(t *testing.T) {
	cfg := testConfig("http://example.invalid")
	cfg.MaxUploadBytes = 1024

	rec := httptest.NewRecorder()
	newTestServer(t, cfg).ServeHTTP(rec, uploadRequest(t, AudioField, make([]byte, 8192)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
}

func TestIndex(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, testConfig("http://example.invalid")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{"Ursy", "/process_audio", "(Max 5s)"} {
		if !strings.Contains(page, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}

	// html/template pads numbers rendered in a script context
	for _, pattern := range []string{
		`MAX_RECORDING_DURATION =\s*5000\s*;`,
		`MIN_RECORDING_DURATION =\s*500\s*;`,
	} {
		if !regexp.MustCompile(pattern).MatchString(page) {
			t.Errorf("Expected page to match %s", pattern)
		}
	}
}

func TestNewUploadBlob(t *testing.T) {
	blob := NewUploadBlob(wavClip(), "", "")
	if blob.MIMEType != audio.WAVMIMEType || blob.Format != audio.DefaultFormat() {
		t.Errorf("Expected WAV metadata, got %+v", blob)
	}
	if blob.Duration.Milliseconds() != 100 {
		t.Errorf("Expected 100ms, got %v", blob.Duration)
	}

	webm := NewUploadBlob([]byte("\x1a\x45\xdf\xa3"), "", "")
	if webm.MIMEType != "audio/webm" || webm.Filename != "recording.webm" {
		t.Errorf("Expected webm defaults, got %+v", webm)
	}
}

func TestStream(t *testing.T) {
	collab := collaborators(t, "hello", "hi there")
	srv := httptest.NewServer(newTestServer(t, testConfig(collab.URL)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello?")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var frame StreamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if frame.Kind != FrameError {
		t.Errorf("Expected an error frame for text input, got %+v", frame)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, wavClip()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var frames []StreamFrame
	for {
		var f StreamFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		frames = append(frames, f)
		if f.Kind == FrameResult || f.Kind == FrameError {
			break
		}
	}

	if first := frames[0]; first.Kind != "status" || first.Payload != pipeline.StatusListening {
		t.Errorf("Unexpected first frame %+v", first)
	}
	last := frames[len(frames)-1]
	if last.Kind != FrameResult || last.UserPrompt != "hello" || last.LLMResponse != "hi there" {
		t.Errorf("Unexpected final frame %+v", last)
	}

	var sawTranscript bool
	for _, f := range frames {
		if f.Kind == "transcript" && f.Payload == "hello" {
			sawTranscript = true
		}
	}
	if !sawTranscript {
		t.Error("Expected a transcript frame")
	}
}

func TestStream_RequiresUpgrade(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, testConfig("http://example.invalid")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a plain GET, got %d", rec.Code)
	}
}
