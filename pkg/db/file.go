package db

import "context"

// FileInterface is the physical file registry used when recording
// output file provenance.
type FileInterface interface {
	// RegisterIfAbsent records a file path (relative to the deployment's
	// file root). Registering a path twice is a no-op, not an error.
	RegisterIfAbsent(ctx context.Context, relPath string) error
}
