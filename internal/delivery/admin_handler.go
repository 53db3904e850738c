package delivery

import (
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

type AdminHandler struct {
	model ports.ModelController
	log   *logger.ZapLogger
}

func NewAdminHandler(model ports.ModelController, log *logger.ZapLogger) *AdminHandler {
	return &AdminHandler{model: model, log: log}
}

// POST /admin/model/reload
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	started := h.model.Reload()
	st := h.model.State()

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "model reload requested",
		Fields:  map[string]any{"started": started, "status": st.Status},
	})

	if !started {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "model is " + string(st.Status),
			"status": st.Status,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   st.Status,
		"attempts": st.Attempts,
	})
}
