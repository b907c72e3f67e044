// Package proxy wraps pool.Pool with observation hooks.
//
// Tests use it to watch transaction lifecycles: how many statements ran,
// whether a transaction was committed or rolled back.
package proxy

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	kpool "github.com/fieldline/imagingdb/pkg/db/postgres/pool"
)

type Callback func()

type event struct {
	before []Callback
	after  []Callback
}

func (e *event) Before(cb ...Callback) *event {
	e.before = append(e.before, cb...)
	return e
}

func (e *event) After(cb ...Callback) *event {
	e.after = append(e.after, cb...)
	return e
}

func (e *event) invoke(f func()) {
	if e == nil {
		f()
		return
	}
	for _, cb := range e.before {
		cb()
	}
	defer func() {
		for _, cb := range e.after {
			cb()
		}
	}()
	f()
}

// SQLEvents carries the hooks shared by a proxied pool and everything
// (conns, transactions) derived from it.
type SQLEvents struct {
	Query    *event
	Commit   *event
	Rollback *event
}

func NewEvents() *SQLEvents {
	return &SQLEvents{
		Query:    new(event),
		Commit:   new(event),
		Rollback: new(event),
	}
}

type Pool struct {
	Base   kpool.Pool
	events *SQLEvents
}

var _ kpool.Pool = &Pool{}

func Wrap(base kpool.Pool) *Pool {
	return &Pool{Base: base, events: NewEvents()}
}

func (p *Pool) Events() *SQLEvents {
	return p.events
}

func (p *Pool) Begin(ctx context.Context) (kpool.Tx, error) {
	tx, err := p.Base.Begin(ctx)
	if tx == nil {
		return nil, err
	}
	return &Tx{Base: tx, events: p.events}, err
}

func (p *Pool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (kpool.Tx, error) {
	tx, err := p.Base.BeginTx(ctx, txOptions)
	if tx == nil {
		return nil, err
	}
	return &Tx{Base: tx, events: p.events}, err
}

func (p *Pool) Acquire(ctx context.Context) (kpool.Conn, error) {
	conn, err := p.Base.Acquire(ctx)
	if conn == nil {
		return nil, err
	}
	return &Conn{Base: conn, events: p.events}, err
}

func (p *Pool) Ping(ctx context.Context) error {
	return p.Base.Ping(ctx)
}

type Conn struct {
	Base   kpool.Conn
	events *SQLEvents
}

var _ kpool.Conn = &Conn{}

func (c *Conn) Begin(ctx context.Context) (kpool.Tx, error) {
	tx, err := c.Base.Begin(ctx)
	if tx == nil {
		return nil, err
	}
	return &Tx{Base: tx, events: c.events}, err
}

func (c *Conn) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (kpool.Tx, error) {
	tx, err := c.Base.BeginTx(ctx, txOptions)
	if tx == nil {
		return nil, err
	}
	return &Tx{Base: tx, events: c.events}, err
}

func (c *Conn) Release() {
	c.Base.Release()
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.Base.Ping(ctx)
}

func (c *Conn) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	var err error
	c.events.Query.invoke(func() {
		tag, err = c.Base.Exec(ctx, sql, arguments...)
	})
	return tag, err
}

func (c *Conn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	var rows pgx.Rows
	var err error
	c.events.Query.invoke(func() {
		rows, err = c.Base.Query(ctx, sql, args...)
	})
	return rows, err
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	var row pgx.Row
	c.events.Query.invoke(func() {
		row = c.Base.QueryRow(ctx, sql, args...)
	})
	return row
}

type Tx struct {
	Base   kpool.Tx
	events *SQLEvents
}

var _ kpool.Tx = &Tx{}

func (tx *Tx) Begin(ctx context.Context) (kpool.Tx, error) {
	inner, err := tx.Base.Begin(ctx)
	if inner == nil {
		return nil, err
	}
	return &Tx{Base: inner, events: tx.events}, err
}

func (tx *Tx) Commit(ctx context.Context) error {
	var err error
	tx.events.Commit.invoke(func() {
		err = tx.Base.Commit(ctx)
	})
	return err
}

func (tx *Tx) Rollback(ctx context.Context) error {
	var err error
	tx.events.Rollback.invoke(func() {
		err = tx.Base.Rollback(ctx)
	})
	return err
}

func (tx *Tx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	var err error
	tx.events.Query.invoke(func() {
		tag, err = tx.Base.Exec(ctx, sql, arguments...)
	})
	return tag, err
}

func (tx *Tx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	var rows pgx.Rows
	var err error
	tx.events.Query.invoke(func() {
		rows, err = tx.Base.Query(ctx, sql, args...)
	})
	return rows, err
}

func (tx *Tx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	var row pgx.Row
	tx.events.Query.invoke(func() {
		row = tx.Base.QueryRow(ctx, sql, args...)
	})
	return row
}
