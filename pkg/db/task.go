package db

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
)

// TaskInterface covers the manual lifecycle of ProcessingTask and the
// method resolution the executor does per key.
type TaskInterface interface {
	// NewParamSet registers a param set for a method.
	//
	// Registering the same (method, paramsetIdx) twice with identical
	// content is a no-op; with different content it fails with
	// domain.ErrDuplicateKey.
	NewParamSet(ctx context.Context, paramset domain.ProcessingParamSet) error

	// NewTask records the intent "run this param set on this scan".
	//
	// The task key is derived from the content (scan, method, paramset),
	// so re-registering the same intent yields domain.ErrDuplicateKey.
	//
	// Returns
	//
	// - domain.TaskKey: key of the registered task.
	//
	// - error: domain.ErrDependencyMissing when the scan or the param set
	// is not registered, domain.ErrDuplicateKey when the task exists.
	NewTask(ctx context.Context, scanID string, method domain.Method, paramsetIdx int) (domain.TaskKey, error)

	// MethodOf resolves which processing method a task selected.
	//
	// Returns
	//
	// - domain.Method
	//
	// - error: domain.ErrMissing when the task is not registered.
	MethodOf(ctx context.Context, key domain.TaskKey) (domain.Method, error)

	// DeleteTask removes a task and every derived descendant record,
	// in one transaction. Ownership is strictly downward: nothing above
	// the task is touched.
	//
	// Returns
	//
	// - error: domain.ErrMissing when the task is not registered.
	DeleteTask(ctx context.Context, key domain.TaskKey) error
}
