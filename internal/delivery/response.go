package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Vovarama1992/speech2text/internal/apperr"
	"github.com/Vovarama1992/speech2text/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorResponse maps a processing error to its status code and JSON body.
func ErrorResponse(err error) (int, map[string]any) {
	var nr *apperr.ModelNotReadyError
	if errors.As(err, &nr) {
		var details any
		if nr.State.Error != "" {
			details = nr.State.Error
		}
		return http.StatusServiceUnavailable, map[string]any{
			"error":         "model loading",
			"loading":       nr.State.Loading(),
			"error_details": details,
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, map[string]any{"error": "request body too large"}
	}

	return apperr.HTTPStatus(err), map[string]any{"error": apperr.PublicMessage(err)}
}

// SuccessResponse is the body of a successful transcription.
func SuccessResponse(res models.InferenceResult) map[string]any {
	if res.RawPredictions != nil {
		return map[string]any{"status": "success", "predictions": res.RawPredictions}
	}
	return map[string]any{"text": res.Text}
}
