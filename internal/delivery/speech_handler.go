package delivery

import (
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

type SpeechHandler struct {
	speech  ports.SpeechProcessor
	maxBody int64
	log     *logger.ZapLogger
}

func NewSpeechHandler(speech ports.SpeechProcessor, maxBody int64, log *logger.ZapLogger) *SpeechHandler {
	return &SpeechHandler{
		speech:  speech,
		maxBody: maxBody,
		log:     log,
	}
}

// POST /speech2text
func (h *SpeechHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	res, err := h.speech.Process(r.Context(), r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		status, body := ErrorResponse(err)
		level := "warn"
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			level = "error"
		}
		h.log.Log(logger.LogEntry{
			Level:   level,
			Message: "speech2text failed",
			Fields:  map[string]any{"status": status},
			Error:   err,
		})
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse(res))
}
