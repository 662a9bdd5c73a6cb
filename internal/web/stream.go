package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/pipeline"
)

const (
	writeWait = 10 * time.Second

	// Kinds of the frames that end an interaction on the stream
	FrameResult = "result"
	FrameError  = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// StreamFrame is one JSON message sent on /ws. Status updates carry
// their kind and payload; the final frame of an interaction is either a
// result with both texts or an error.
type StreamFrame struct {
	Kind          string `json:"kind"`
	Payload       string `json:"payload,omitempty"`
	InteractionID string `json:"interaction_id,omitempty"`
	State         string `json:"state,omitempty"`
	UserPrompt    string `json:"user_prompt,omitempty"`
	LLMResponse   string `json:"llm_response,omitempty"`
}

// streamSession is one websocket connection. Each binary message is a
// complete recording and runs as its own interaction, one at a time.
type streamSession struct {
	conn   *websocket.Conn
	server *Server
	logger zerolog.Logger

	writeMu sync.Mutex
}

// HandleStream upgrades to a websocket and streams the progress of every
// recording sent on it.
func (s *Server) HandleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.WithComponent("web")
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		conn.SetReadLimit(s.cfg.MaxUploadBytes)

		session := &streamSession{
			conn:   conn,
			server: s,
			logger: observability.WithCorrelationID(observability.NewCorrelationID()).
				With().Str("component", "stream").Logger(),
		}
		session.logger.Info().Str("remote", r.RemoteAddr).Msg("Stream connected")
		session.serve(r)
		session.logger.Info().Msg("Stream closed")
	}
}

func (ss *streamSession) serve(r *http.Request) {
	ctx := r.Context()
	for {
		msgType, data, err := ss.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ss.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			ss.write(StreamFrame{Kind: FrameError, Payload: "Send each recording as one binary message."})
			continue
		}
		if len(data) == 0 {
			ss.write(StreamFrame{Kind: FrameError, Payload: faults.MsgNoAudio})
			continue
		}

		blob := NewUploadBlob(data, "", "")
		ia, err := ss.server.orch.Process(ctx, pipeline.VariantWebSocket, blob, ss.publish)
		if err != nil {
			ss.write(StreamFrame{Kind: FrameError, InteractionID: ia.ID, Payload: faults.Message(err)})
			continue
		}
		ss.write(StreamFrame{
			Kind:          FrameResult,
			InteractionID: ia.ID,
			State:         ia.State.String(),
			UserPrompt:    ia.Transcript,
			LLMResponse:   ia.ReplyText,
		})
	}
}

func (ss *streamSession) publish(u pipeline.StatusUpdate) {
	ss.write(StreamFrame{
		Kind:          u.Kind.String(),
		Payload:       u.Payload,
		InteractionID: u.InteractionID,
		State:         u.State,
	})
}

func (ss *streamSession) write(frame StreamFrame) {
	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()

	ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ss.conn.WriteJSON(frame); err != nil {
		ss.logger.Debug().Err(err).Str("kind", frame.Kind).Msg("Failed to write frame")
	}
}
