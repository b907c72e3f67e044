package domain

import (
	"strconv"

	"github.com/fieldline/imagingdb/pkg/domain/catalog"
	xe "github.com/fieldline/imagingdb/pkg/errors"
	"github.com/google/uuid"
)

// Record is one keyed row of some entity type.
//
// Concrete record types live in this package; the record store accepts
// them through this interface and dispatches on Kind.
type Record interface {
	Kind() catalog.EntityType
	RecordKey() catalog.Key
}

// TaskKey identifies one ProcessingTask and, by key inheritance, every
// entity computed from it.
type TaskKey struct {
	ScanID string

	// content-derived id of the task: uuid v5 over (scan id, method, paramset).
	Instance uuid.UUID
}

func (k TaskKey) Key() catalog.Key {
	return catalog.KeyOf(
		catalog.KeyElem{Column: catalog.ColScanID, Value: k.ScanID},
		catalog.KeyElem{Column: catalog.ColProcessingInstance, Value: k.Instance.String()},
	)
}

func (k TaskKey) Equal(other TaskKey) bool {
	return k.ScanID == other.ScanID && k.Instance == other.Instance
}

// namespace for task instance uuids (v5).
var taskNamespace = uuid.MustParse("74c5e6a1-9b3e-52d4-8f05-cfa2b0e1d6b9")

// NewTaskKey derives the content-addressed key of the task
// "run paramset (method, paramsetIdx) on scan scanID".
//
// The same intent always yields the same key, making task registration
// idempotent at the store's uniqueness constraint.
func NewTaskKey(scanID string, method Method, paramsetIdx int) TaskKey {
	content := scanID + "/" + method.String() + "/" + strconv.Itoa(paramsetIdx)
	return TaskKey{ScanID: scanID, Instance: uuid.NewSHA1(taskNamespace, []byte(content))}
}

// TaskKeyFrom reads a TaskKey back out of a generic key.
func TaskKeyFrom(key catalog.Key) (TaskKey, error) {
	scanID, ok := key.Get(catalog.ColScanID)
	if !ok {
		return TaskKey{}, xe.WrapWithNote(key.String(), catalog.ErrColumnMissing{Column: catalog.ColScanID})
	}
	rawInstance, ok := key.Get(catalog.ColProcessingInstance)
	if !ok {
		return TaskKey{}, xe.WrapWithNote(key.String(), catalog.ErrColumnMissing{Column: catalog.ColProcessingInstance})
	}
	instance, err := uuid.Parse(rawInstance)
	if err != nil {
		return TaskKey{}, xe.Wrap(err)
	}
	return TaskKey{ScanID: scanID, Instance: instance}, nil
}

func intElem(column string, v int) catalog.KeyElem {
	return catalog.KeyElem{Column: column, Value: strconv.Itoa(v)}
}
