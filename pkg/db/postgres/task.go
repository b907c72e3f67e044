package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	kpgerr "github.com/fieldline/imagingdb/pkg/db/postgres/errors"
	kpool "github.com/fieldline/imagingdb/pkg/db/postgres/pool"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

type taskPG struct { // implements kdb.TaskInterface
	pool kpool.Pool
}

func NewTask(pool kpool.Pool) *taskPG {
	return &taskPG{pool: pool}
}

var _ kdb.TaskInterface = &taskPG{}

func (t *taskPG) NewParamSet(ctx context.Context, paramset domain.ProcessingParamSet) error {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	ctag, err := conn.Exec(
		ctx,
		`
		insert into "processing_paramset"
			("processing_method", "paramset_idx", "description", "params_ref")
		values ($1, $2, $3, $4)
		on conflict do nothing
		`,
		paramset.Method.String(), paramset.ParamsetIdx, paramset.Description, paramset.ParamsRef,
	)
	if err != nil {
		return kpgerr.Translate(
			err, string(catalog.ProcessingParamSet), paramset.RecordKey().String(),
		)
	}
	if ctag.RowsAffected() != 0 {
		return nil
	}

	// a row was already there. Same content means idempotent re-registration.
	var description, paramsRef string
	if err := conn.QueryRow(
		ctx,
		`
		select "description", "params_ref" from "processing_paramset"
		where "processing_method" = $1 and "paramset_idx" = $2
		`,
		paramset.Method.String(), paramset.ParamsetIdx,
	).Scan(&description, &paramsRef); err != nil {
		return err
	}
	if description == paramset.Description && paramsRef == paramset.ParamsRef {
		return nil
	}
	return kpgerr.Duplicate{
		Table:    string(catalog.ProcessingParamSet),
		Identity: paramset.RecordKey().String(),
	}
}

func (t *taskPG) NewTask(ctx context.Context, scanID string, method domain.Method, paramsetIdx int) (domain.TaskKey, error) {
	key := domain.NewTaskKey(scanID, method, paramsetIdx)

	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return domain.TaskKey{}, err
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		insert into "processing_task"
			("scan_id", "processing_instance", "processing_method", "paramset_idx")
		values ($1, $2, $3, $4)
		`,
		scanID, key.Instance, method.String(), paramsetIdx,
	); err != nil {
		return domain.TaskKey{}, kpgerr.Translate(
			err, string(catalog.ProcessingTask), key.Key().String(),
		)
	}
	return key, nil
}

func (t *taskPG) MethodOf(ctx context.Context, key domain.TaskKey) (domain.Method, error) {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	var method string
	if err := conn.QueryRow(
		ctx,
		`
		select "processing_method" from "processing_task"
		where "scan_id" = $1 and "processing_instance" = $2
		`,
		key.ScanID, key.Instance,
	).Scan(&method); err != nil {
		if err == pgx.ErrNoRows {
			return "", kpgerr.Missing{
				Table:    string(catalog.ProcessingTask),
				Identity: key.Key().String(),
			}
		}
		return "", err
	}
	return domain.AsMethod(method)
}

// DeleteTask relies on the on-delete cascades of the schema: every
// computed descendant hangs off processing_task by key inheritance.
func (t *taskPG) DeleteTask(ctx context.Context, key domain.TaskKey) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ctag, err := tx.Exec(
		ctx,
		`delete from "processing_task" where "scan_id" = $1 and "processing_instance" = $2`,
		key.ScanID, key.Instance,
	)
	if err != nil {
		return err
	}
	if ctag.RowsAffected() == 0 {
		return kpgerr.Missing{
			Table:    string(catalog.ProcessingTask),
			Identity: key.Key().String(),
		}
	}
	return tx.Commit(ctx)
}
