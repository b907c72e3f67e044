package catalog

import (
	"net/url"
	"strings"

	xe "github.com/fieldline/imagingdb/pkg/errors"
)

// KeySchema is the ordered list of key column names of an entity type.
type KeySchema []string

func (s KeySchema) Contains(column string) bool {
	for _, c := range s {
		if c == column {
			return true
		}
	}
	return false
}

// s ⊆ other, ordering not required.
func (s KeySchema) SubsetOf(other KeySchema) bool {
	for _, c := range s {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

func (s KeySchema) Equal(other KeySchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// KeyElem is one (column, value) element of a Key.
//
// Values are held in text form, in the same rendering the record store uses
// (integers base-10, uuids in canonical form).
type KeyElem struct {
	Column string
	Value  string
}

// Key identifies one record within an entity type.
//
// It is an ordered tuple, following the entity's KeySchema.
// Two Keys are the same identity iff their canonical String()s are equal.
type Key []KeyElem

func KeyOf(elems ...KeyElem) Key {
	return Key(elems)
}

// String renders the key canonically: values are escaped so that
// no scan id can collide with the separators.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, e := range k {
		parts[i] = e.Column + "=" + url.QueryEscape(e.Value)
	}
	return strings.Join(parts, "&")
}

func (k Key) Get(column string) (string, bool) {
	for _, e := range k {
		if e.Column == column {
			return e.Value, true
		}
	}
	return "", false
}

// Project picks the columns of schema out of k, in schema order.
//
// It fails when k does not carry all columns of schema.
func (k Key) Project(schema KeySchema) (Key, error) {
	projected := make(Key, 0, len(schema))
	for _, col := range schema {
		v, ok := k.Get(col)
		if !ok {
			return nil, xe.WrapWithNote("projecting key "+k.String(), ErrColumnMissing{Column: col})
		}
		projected = append(projected, KeyElem{Column: col, Value: v})
	}
	return projected, nil
}

// Extend returns a new Key with elems appended after k's elements.
func (k Key) Extend(elems ...KeyElem) Key {
	extended := make(Key, 0, len(k)+len(elems))
	extended = append(extended, k...)
	extended = append(extended, elems...)
	return extended
}

func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}

type ErrColumnMissing struct {
	Column string
}

func (e ErrColumnMissing) Error() string {
	return "key does not have column: " + e.Column
}
