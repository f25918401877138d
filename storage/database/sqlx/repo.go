// Package sqlxrepos implements the domain repositories on top of jmoiron/sqlx.
// Queries are written with "?" placeholders and rebound for the driver in use,
// so they run unchanged on postgres and sqlite.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// trapNoRowsErr maps sql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if isNoRows(err) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func get(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exe.GetContext(ctx, dest, exe.Rebind(query), args...)
}

func selectAll(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exe.SelectContext(ctx, dest, exe.Rebind(query), args...)
}

func execCount(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int, error) {
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

// in expands the slices of args for an IN clause.
func in(query string, args ...interface{}) (string, []interface{}, error) {
	return sqlx.In(query, args...)
}

// where accumulates AND-ed conditions.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	s := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		s += " AND " + c
	}
	return s
}
