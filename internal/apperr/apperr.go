package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Vovarama1992/speech2text/internal/models"
)

type Kind string

const (
	KindInput     Kind = "input"
	KindTranscode Kind = "transcode"
	KindNotReady  Kind = "not_ready"
	KindInference Kind = "inference"
	KindLoader    Kind = "loader"
	KindUnknown   Kind = "unknown"

	// KindUnavailable marks transient transport failures worth one more try.
	KindUnavailable Kind = "unavailable"
)

// Error is a kind-tagged error. Message is safe to return to clients.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap tags err with kind. Already tagged errors are returned unchanged.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	var dl *DownloadError
	if errors.As(err, &dl) {
		return err
	}
	var nr *ModelNotReadyError
	if errors.As(err, &nr) {
		return err
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

var (
	ErrMissingFile   = New(KindInput, "ingest", "Missing uploaded file")
	ErrMissingAudio  = New(KindInput, "ingest", "missing 'audio_base64' or 'url'")
	ErrUnknownFormat = New(KindTranscode, "normalize", "unknown audio format")
)

// DownloadError is returned when the audio URL answered with a non-200 status.
type DownloadError struct {
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("Failed to download audio from URL (%d)", e.StatusCode)
}

// ModelNotReadyError carries the loader state observed when a request arrived.
type ModelNotReadyError struct {
	State models.ModelState
}

func (e *ModelNotReadyError) Error() string {
	if e.State.Error != "" {
		return fmt.Sprintf("model %s: %s", e.State.Status, e.State.Error)
	}
	return fmt.Sprintf("model %s", e.State.Status)
}

// KindOf walks the chain and reports the first recognised kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var dl *DownloadError
	if errors.As(err, &dl) {
		return KindInput
	}
	var nr *ModelNotReadyError
	if errors.As(err, &nr) {
		return KindNotReady
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindInput:
		return http.StatusBadRequest
	case KindNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text put into {"error": ...}.
func PublicMessage(err error) string {
	var dl *DownloadError
	if errors.As(err, &dl) {
		return dl.Error()
	}
	var typed *Error
	if errors.As(err, &typed) {
		if typed.Cause != nil {
			return typed.Message + ": " + typed.Cause.Error()
		}
		return typed.Message
	}
	return err.Error()
}
