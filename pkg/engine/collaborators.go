package engine

import (
	"context"

	"github.com/fieldline/imagingdb/pkg/domain"
)

// Locator resolves the external output directory of a task for a method.
// Deployments inject it; a deployment without a location scheme for some
// method returns domain.ErrSourceLocationUnavailable.
type Locator interface {
	PathFor(method domain.Method, key domain.TaskKey) (string, error)
}

// FileRoot resolves the directory all stored file paths are relative to.
type FileRoot interface {
	Root() string

	// Relativize turns an absolute path under Root into the posix-form
	// relative path stored in the record store.
	Relativize(abs string) (string, error)
}

// Trigger launches the external tool for a task. Fire and forget: the
// engine observes completion on a later pass, never awaits it.
type Trigger interface {
	Launch(ctx context.Context, method domain.Method, key domain.TaskKey) error
}
