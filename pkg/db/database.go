package db

import "context"

// ImagingDatabase aggregates the store concerns of the pipeline.
type ImagingDatabase interface {
	Store() StoreInterface
	Task() TaskInterface
	File() FileInterface
	Scan() ScanInterface

	// Init ensures the schema exists and lookup contents are seeded.
	Init(ctx context.Context) error

	Close() error
}
