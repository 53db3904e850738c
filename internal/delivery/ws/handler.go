package ws

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/delivery"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type stateMsg struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Since    string `json:"since,omitempty"`
}

// StateMessage renders a loader transition for clients.
func StateMessage(st models.ModelState) []byte {
	msg := stateMsg{
		Type:     "model_state",
		Status:   string(st.Status),
		Error:    st.Error,
		Attempts: st.Attempts,
	}
	if !st.Since.IsZero() {
		msg.Since = st.Since.UTC().Format(time.RFC3339)
	}
	b, _ := json.Marshal(msg)
	return b
}

// Handler serves /ws: each text frame is a JSON request, each binary frame
// is raw audio in the container named by the "format" query parameter.
func Handler(
	hub *Hub,
	speech ports.SpeechProcessor,
	defaultFormat string,
	maxMessage int64,
	log *logger.ZapLogger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Log(logger.LogEntry{Level: "warn", Message: "[WS] upgrade failed", Error: err})
			return
		}
		if maxMessage > 0 {
			conn.SetReadLimit(maxMessage)
		}

		q := r.URL.Query()
		roomID := q.Get("roomID")
		if roomID == "" {
			roomID = "default"
		}
		format := q.Get("format")
		if format == "" {
			format = defaultFormat
		}

		client := hub.Register(roomID, conn)
		defer hub.Unregister(roomID, client)

		_ = client.Send(StateMessage(speech.Readiness()))

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				log.Log(logger.LogEntry{
					Level:   "info",
					Message: "[WS] disconnect",
					Fields:  map[string]any{"room": roomID},
				})
				return
			}

			var contentType string
			switch kind {
			case websocket.TextMessage:
				contentType = "application/json"
			case websocket.BinaryMessage:
				contentType = "audio/" + format
			default:
				continue
			}

			id := uuid.NewString()
			res, err := speech.Process(r.Context(), contentType, bytes.NewReader(data))

			var reply map[string]any
			if err != nil {
				code, body := delivery.ErrorResponse(err)
				reply = body
				reply["code"] = code
				reply["type"] = "error"
			} else {
				reply = delivery.SuccessResponse(res)
				reply["type"] = "result"
			}
			reply["id"] = id

			b, _ := json.Marshal(reply)
			if err := client.Send(b); err != nil {
				log.Log(logger.LogEntry{
					Level:   "warn",
					Message: "[WS] reply failed",
					Fields:  map[string]any{"room": roomID, "id": id},
					Error:   err,
				})
				return
			}
		}
	}
}
