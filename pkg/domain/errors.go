package domain

import "errors"

var (
	// the method selected by a key has no implementation for the
	// requested operation. Fatal for that key only; the key stays
	// pending until support is added.
	ErrUnsupportedMethod = errors.New("unsupported processing method")

	// no way to locate the external output directory is configured
	// for this deployment.
	ErrSourceLocationUnavailable = errors.New("output location is not configured")

	// the external output directory does not exist (yet).
	ErrSourceNotFound = errors.New("output directory is not found")

	// the external output directory exists but its contents do not
	// match the expected layout.
	ErrMalformedSource = errors.New("output directory is malformed")

	// insertion of a row whose key already exists.
	// Benign when concurrent workers race on one key.
	ErrDuplicateKey = errors.New("record already exists")

	// a record's parent is absent. The resolver makes this structurally
	// impossible; observing it is a defect, not a per-key failure.
	ErrDependencyMissing = errors.New("parent record is missing")

	// the computation for a key was (or should be) handed to the external
	// tool, and no result exists yet. The key stays pending.
	ErrNotYetTriggered = errors.New("processing is not yet run")

	// requested record is missing.
	ErrMissing = errors.New("record is not found")
)
