package infra

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/Vovarama1992/speech2text/internal/models"
	"google.golang.org/api/iterator"
)

// GCSBlobStore lists and reads model artifacts from one bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

func NewGCSBlobStore(ctx context.Context, bucket string) (*GCSBlobStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: empty bucket name")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSBlobStore{client: client, bucket: bucket}, nil
}

func (s *GCSBlobStore) List(ctx context.Context, prefix string) ([]models.BlobObject, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var out []models.BlobObject
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list gs://%s/%s: %w", s.bucket, prefix, err)
		}
		out = append(out, models.BlobObject{Name: attrs.Name, Size: attrs.Size})
	}
	return out, nil
}

func (s *GCSBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs open gs://%s/%s: %w", s.bucket, name, err)
	}
	return r, nil
}

func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}
