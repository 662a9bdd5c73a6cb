// Package web serves the browser variant: the recording page, the
// one-shot upload endpoint and a websocket that streams progress.
package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"

	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/pipeline"
)

//go:embed templates/index.html
var templates embed.FS

// AudioField is the multipart field carrying the recording
const AudioField = "audio_file"

const msgTooLarge = "Audio file is too large."

var errEmptyUpload = errors.New("uploaded audio file is empty")

// maxMemory is kept in memory while parsing a multipart upload; the rest
// spills to temporary files owned by net/http.
const maxMemory = 4 << 20

// Server holds the handlers of the browser variant
type Server struct {
	cfg  *config.Config
	orch *pipeline.Orchestrator
	page *template.Template
}

// ProcessResponse is the success body of /process_audio
type ProcessResponse struct {
	UserPrompt  string `json:"user_prompt"`
	LLMResponse string `json:"llm_response"`
}

// ErrorResponse is the failure body of every endpoint
type ErrorResponse struct {
	Error string `json:"error"`
}

type pageData struct {
	Character  string
	MinMs      int
	MaxMs      int
	MaxSeconds int
}

// NewServer creates the handlers. The orchestrator should use a silent
// speaker since the browser speaks replies itself.
func NewServer(cfg *config.Config, orch *pipeline.Orchestrator) (*Server, error) {
	page, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, orch: orch, page: page}, nil
}

// Register adds the browser routes to mux
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.HandleIndex())
	mux.HandleFunc("POST /process_audio", s.HandleProcessAudio())
	mux.HandleFunc("GET /ws", s.HandleStream())
}

// HandleIndex renders the recording page
func (s *Server) HandleIndex() http.HandlerFunc {
	data := pageData{
		Character:  s.cfg.CharacterName,
		MinMs:      s.cfg.CaptureMinMs,
		MaxMs:      s.cfg.CaptureMaxMs,
		MaxSeconds: (s.cfg.CaptureMaxMs + 999) / 1000,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := s.page.Execute(&buf, data); err != nil {
			logger := observability.WithComponent("web")
			logger.Error().Err(err).Msg("Failed to render page")
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}

// HandleProcessAudio runs one uploaded recording through the pipeline and
// returns the transcript and the reply.
func (s *Server) HandleProcessAudio() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := observability.WithCorrelationID(observability.NewCorrelationID())

		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		blob, err := readUpload(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
				return
			}
			logger.Debug().Err(err).Msg("Request without audio file")
			writeError(w, http.StatusBadRequest, faults.MsgNoAudio)
			return
		}

		ia, err := s.orch.Process(r.Context(), pipeline.VariantHTTP, blob, nil)
		w.Header().Set("X-Interaction-ID", ia.ID)
		if err != nil {
			logger.Warn().
				Str("interaction_id", ia.ID).
				Str("kind", faults.KindOf(err).String()).
				Msg("Pipeline failed")
			writeError(w, http.StatusInternalServerError, faults.Message(err))
			return
		}

		writeJSON(w, http.StatusOK, ProcessResponse{
			UserPrompt:  ia.Transcript,
			LLMResponse: ia.ReplyText,
		})
	}
}

func readUpload(r *http.Request) (audio.Blob, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return audio.Blob{}, err
	}
	file, header, err := r.FormFile(AudioField)
	if err != nil {
		return audio.Blob{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return audio.Blob{}, err
	}
	if len(data) == 0 {
		return audio.Blob{}, errEmptyUpload
	}

	return NewUploadBlob(data, header.Filename, header.Header.Get("Content-Type")), nil
}

// NewUploadBlob wraps uploaded bytes as a recording. WAV uploads get their
// format and duration from the header; anything else is passed through
// for the transcriber to decode.
func NewUploadBlob(data []byte, filename, mimeType string) audio.Blob {
	blob := audio.Blob{
		Data:     data,
		Filename: filename,
		MIMEType: mimeType,
	}
	if pcm, format, err := audio.DecodeWAV(data); err == nil {
		blob.Format = format
		blob.Duration = format.Duration(len(pcm))
		blob.MIMEType = audio.WAVMIMEType
		if blob.Filename == "" {
			blob.Filename = "recording.wav"
		}
	}
	if blob.Filename == "" {
		blob.Filename = "recording.webm"
	}
	if blob.MIMEType == "" || blob.MIMEType == "application/octet-stream" {
		blob.MIMEType = "audio/webm"
	}
	return blob
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := observability.WithComponent("web")
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
