package delivery

import (
	"math"
	"net/http"
	"time"

	"github.com/Vovarama1992/speech2text/internal/models"
)

type readinessSource interface {
	Readiness() models.ModelState
}

type HealthHandler struct {
	src readinessSource
	now func() time.Time
}

func NewHealthHandler(src readinessSource) *HealthHandler {
	return &HealthHandler{src: src, now: time.Now}
}

// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	st := h.src.Readiness()

	body := map[string]any{"status": st.Status}
	if st.Error != "" {
		body["error"] = st.Error
	}
	if st.Loading() && !st.Since.IsZero() {
		secs := h.now().Sub(st.Since).Seconds()
		body["loading_for"] = math.Round(secs*10) / 10
	}

	status := http.StatusOK
	if !st.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
