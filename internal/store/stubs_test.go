package store

import (
	"context"
	"database/sql"
)

type getFunc func(ctx context.Context, dest any, query string, args ...any) error

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

type stubDB struct {
	getFn    getFunc
	selectFn getFunc
	execFn   execFunc
}

func (s stubDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return stubGetter{getFn: s.getFn}.GetContext(ctx, dest, query, args...)
}

func (s stubDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

func (s stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return stubExecer{execFn: s.execFn}.ExecContext(ctx, query, args...)
}

type stubExecer struct {
	execFn execFunc
}

func (s stubExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return stubResult{}, nil
	}
	return s.execFn(ctx, query, args...)
}

type stubGetter struct {
	getFn getFunc
}

func (s stubGetter) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.getFn == nil {
		return nil
	}
	return s.getFn(ctx, dest, query, args...)
}

// conditionalUpdate answers an UPDATE ... RETURNING. With no row set it
// reports sql.ErrNoRows, which is what postgres gives when the WHERE guard
// matched nothing.
type conditionalUpdate struct {
	row   func(dest any)
	err   error
	query string
	args  []any
}

func (c *conditionalUpdate) GetContext(_ context.Context, dest any, query string, args ...any) error {
	c.query, c.args = query, args
	if c.err != nil {
		return c.err
	}
	if c.row == nil {
		return sql.ErrNoRows
	}
	c.row(dest)
	return nil
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) {
	return 0, r.err
}

func (r stubResult) RowsAffected() (int64, error) {
	return r.rows, r.err
}
