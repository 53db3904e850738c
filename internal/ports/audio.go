package ports

import (
	"context"
	"io"

	"github.com/Vovarama1992/speech2text/internal/models"
)

// Transcoder converts inPath (container given by format) into a
// 16 kHz mono 16-bit WAV file at outPath.
type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath, format string) error
	Name() string
}

// AudioFetcher downloads audio referenced by URL. A non-200 response is
// reported through status with a nil error.
type AudioFetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, status int, err error)
}

// BlobStore is the remote object store holding model artifacts.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]models.BlobObject, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
