package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	"github.com/fieldline/imagingdb/pkg/domain"
)

// requested record is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}
func (m Missing) Unwrap() error {
	return domain.ErrMissing
}

// a record with the same primary key is already committed.
type Duplicate struct {
	Table    string
	Identity string
}

var _ error = Duplicate{}

func (d Duplicate) Error() string {
	return fmt.Sprintf("%s already exists in %s", d.Identity, d.Table)
}
func (d Duplicate) Unwrap() error {
	return domain.ErrDuplicateKey
}

// a record references a parent row which is not committed.
type BrokenReference struct {
	Table    string
	Identity string
}

var _ error = BrokenReference{}

func (b BrokenReference) Error() string {
	return fmt.Sprintf("%s in %s references a missing parent", b.Identity, b.Table)
}
func (b BrokenReference) Unwrap() error {
	return domain.ErrDependencyMissing
}

// Translate converts postgres constraint violations into their domain
// counterparts. Errors it does not recognise pass through unchanged.
func Translate(err error, table string, identity string) error {
	if err == nil {
		return nil
	}
	pgerr := new(pgconn.PgError)
	if !errors.As(err, &pgerr) {
		return err
	}
	switch pgerr.Code {
	case pgerrcode.UniqueViolation:
		return Duplicate{Table: table, Identity: identity}
	case pgerrcode.ForeignKeyViolation:
		return BrokenReference{Table: table, Identity: identity}
	}
	return err
}
