package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/partselect-assistant/server/internal/agent/model"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket answers each text frame with one response. Frames are
// either {message, conversation_id} JSON or plain text; the conversation id
// defaults to the client id.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Warn().Err(err).Str("client_id", clientID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	logx.Info().Str("client_id", clientID).Msg("websocket connected")

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logx.Warn().Err(err).Str("client_id", clientID).Msg("websocket read failed")
			}
			logx.Info().Str("client_id", clientID).Msg("websocket disconnected")
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		req := parseFrame(frame)
		if req.ConversationID == "" {
			req.ConversationID = clientID
		}
		req.Channel = model.ChannelWebSocket

		resp := s.chat.Chat(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			logx.Warn().Err(err).Str("client_id", clientID).Msg("websocket write failed")
			return
		}
	}
}

func parseFrame(frame []byte) model.ChatRequest {
	var body chatBody
	trimmed := strings.TrimSpace(string(frame))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(frame, &body) == nil {
		return model.ChatRequest{Message: body.Message, ConversationID: body.ConversationID}
	}
	return model.ChatRequest{Message: trimmed}
}
