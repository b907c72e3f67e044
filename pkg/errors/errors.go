// Package errors wraps errors with the location where they were wrapped.
//
//	wrapped := xe.Wrap(err)
//
// Each Wrap call records the file, line and function of its caller, so a
// chain of wraps reads like a stack trace when split on "<-".
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

type ErrWithCaller struct {
	err      error
	note     string
	funcname string
	file     string
	line     int
}

func (e *ErrWithCaller) Error() string {
	if e.note != "" {
		return fmt.Sprintf(`@ %s "%s" l%d (%s) <- %s`, e.funcname, e.file, e.line, e.note, e.err)
	}
	return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err)
}

func (e *ErrWithCaller) Unwrap() error { return e.err }

func (e *ErrWithCaller) File() string { return e.file }
func (e *ErrWithCaller) Line() int    { return e.line }

// New is errors.New with caller tracking.
func New(text string) error {
	return wrap("", errors.New(text), 1)
}

// Wrap marks err with the caller's location.
func Wrap(err error) error {
	return wrap("", err, 1)
}

// WrapWithNote is Wrap with an extra note kept in the message.
func WrapWithNote(note string, err error) error {
	return wrap(note, err, 1)
}

func wrap(note string, err error, skip int) error {
	e := &ErrWithCaller{err: err, note: note, funcname: "(unknown func)", file: "?", line: -1}

	pc, file, line, ok := runtime.Caller(skip + 1)
	if ok {
		e.file, e.line = file, line
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.funcname = fn.Name()
		}
	}
	return e
}
