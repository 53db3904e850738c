package models

import "time"

type ModelStatus string

const (
	ModelNotLoaded ModelStatus = "not_loaded"
	ModelLoading   ModelStatus = "loading"
	ModelReady     ModelStatus = "ready"
)

// ModelState is a snapshot of the local model loader.
type ModelState struct {
	Status   ModelStatus
	Error    string    // last load failure, empty otherwise
	Since    time.Time // when Status was entered
	Attempts int
}

func (s ModelState) Ready() bool   { return s.Status == ModelReady }
func (s ModelState) Loading() bool { return s.Status == ModelLoading }

// BlobObject is one entry of a remote store listing.
type BlobObject struct {
	Name string
	Size int64
}
