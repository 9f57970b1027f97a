// Package sqlxrepos implements the repositories over sqlx, for both postgres and sqlite3.
// Queries are written with `?` placeholders and rebound for the driver in use.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

// batchSize bounds the rows of one multi-row INSERT, under sqlite's variable limit.
const batchSize = 500

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func getQ(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func selectQ(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func execQ(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}

// execAffected runs q and returns the number of rows it changed.
func execAffected(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (int, error) {
	res, err := execQ(ctx, exec, q)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "res.RowsAffected()")
	}
	return int(n), nil
}

// trapNoRowsErr maps sql "no rows" err to `notFound`
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback ...string) []string {
	clauses := make([]string, 0, len(ordering)+len(fallback))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	return append(clauses, fallback...)
}

// sqlxSelect runs a raw `?` query.
func sqlxSelect(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}
