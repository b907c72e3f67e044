package postgres

import (
	"context"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	kpgerr "github.com/fieldline/imagingdb/pkg/db/postgres/errors"
	kpool "github.com/fieldline/imagingdb/pkg/db/postgres/pool"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

type filePG struct { // implements kdb.FileInterface
	pool kpool.Pool
}

func NewFile(pool kpool.Pool) *filePG {
	return &filePG{pool: pool}
}

var _ kdb.FileInterface = &filePG{}

func (f *filePG) RegisterIfAbsent(ctx context.Context, relPath string) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`insert into "physical_file" ("file_path") values ($1) on conflict do nothing`,
		relPath,
	); err != nil {
		return kpgerr.Translate(err, string(catalog.PhysicalFile), relPath)
	}
	return nil
}
