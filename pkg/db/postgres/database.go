// Package postgres implements the record store on PostgreSQL.
//
// Each interface of pkg/db has its own implementation file; this file
// assembles them over one connection pool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	kpool "github.com/fieldline/imagingdb/pkg/db/postgres/pool"
	"github.com/fieldline/imagingdb/pkg/db/postgres/tables"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

type pgDatabase struct { // implements kdb.ImagingDatabase
	pool  kpool.Pool
	close func()

	store kdb.StoreInterface
	task  kdb.TaskInterface
	file  kdb.FileInterface
	scan  kdb.ScanInterface
}

var _ kdb.ImagingDatabase = &pgDatabase{}

// New connects to the database at dsn and builds the store facade on it.
//
// Callers own the returned database; Close releases the pool.
func New(ctx context.Context, cat *catalog.Catalog, dsn string) (*pgDatabase, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pgpool, err := pgxpool.ConnectConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	d := Build(cat, kpool.Wrap(pgpool))
	d.close = pgpool.Close
	return d, nil
}

// Build assembles the facade on an existing pool. Tests use this to pass
// proxied pools; Close is a no-op for databases built this way.
func Build(cat *catalog.Catalog, pool kpool.Pool) *pgDatabase {
	return &pgDatabase{
		pool:  pool,
		store: NewStore(cat, pool),
		task:  NewTask(pool),
		file:  NewFile(pool),
		scan:  NewScan(pool),
	}
}

func (d *pgDatabase) Store() kdb.StoreInterface { return d.store }
func (d *pgDatabase) Task() kdb.TaskInterface   { return d.task }
func (d *pgDatabase) File() kdb.FileInterface   { return d.file }
func (d *pgDatabase) Scan() kdb.ScanInterface   { return d.scan }

func (d *pgDatabase) Init(ctx context.Context) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return tables.Apply(ctx, conn)
}

func (d *pgDatabase) Close() error {
	if d.close != nil {
		d.close()
	}
	return nil
}
