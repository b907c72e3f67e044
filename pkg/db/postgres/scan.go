package postgres

import (
	"context"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	kpgerr "github.com/fieldline/imagingdb/pkg/db/postgres/errors"
	kpool "github.com/fieldline/imagingdb/pkg/db/postgres/pool"
	"github.com/fieldline/imagingdb/pkg/db/postgres/tables"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

type scanPG struct { // implements kdb.ScanInterface
	pool kpool.Pool
}

func NewScan(pool kpool.Pool) *scanPG {
	return &scanPG{pool: pool}
}

var _ kdb.ScanInterface = &scanPG{}

func (s *scanPG) NewScan(ctx context.Context, scanID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`insert into "scan" ("scan_id") values ($1) on conflict do nothing`,
		scanID,
	); err != nil {
		return kpgerr.Translate(err, string(catalog.Scan), scanID)
	}
	return nil
}

func (s *scanPG) SetScanInfo(ctx context.Context, info domain.ScanInfo, fields []domain.Field) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tables.Insert(ctx, tx, info); err != nil {
		return err
	}
	for _, f := range fields {
		if err := tables.Insert(ctx, tx, f); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
