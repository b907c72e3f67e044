package db

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
)

// ScanInterface seeds the upstream entities this pipeline hangs off.
// Populating them from raw scan files belongs to the acquisition side;
// the engine only needs them present.
type ScanInterface interface {
	// NewScan registers a scan id. Idempotent.
	NewScan(ctx context.Context, scanID string) error

	// SetScanInfo records extracted metadata and the per-field geometry
	// of a scan, in one transaction. A scan with ScanInfo present becomes
	// visible to the Processing key source.
	SetScanInfo(ctx context.Context, info domain.ScanInfo, fields []domain.Field) error
}
