package dao

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ArrayOp is one atomic set operation on a text[] column.
type ArrayOp struct {
	Column string
	Remove bool
	Value  string
}

func AddTo(column, value string) ArrayOp      { return ArrayOp{Column: column, Value: value} }
func RemoveFrom(column, value string) ArrayOp { return ArrayOp{Column: column, Remove: true, Value: value} }

// arrayUpdates turns ops into column expressions. Appends are guarded so a column stays a set.
// Several ops on the same column are chained into one expression.
func arrayUpdates(ops []ArrayOp) map[string]any {
	exprs := map[string]string{}
	args := map[string][]any{}
	var order []string
	for _, op := range ops {
		cur, ok := exprs[op.Column]
		if !ok {
			cur = op.Column
			order = append(order, op.Column)
		}
		if op.Remove {
			exprs[op.Column] = fmt.Sprintf("array_remove(%s, ?)", cur)
			args[op.Column] = append(args[op.Column], op.Value)
			continue
		}
		exprs[op.Column] = fmt.Sprintf("CASE WHEN ? = ANY(%s) THEN %s ELSE array_append(%s, ?) END", cur, cur, cur)
		// the current expression appears three times, its arguments with it
		prev := args[op.Column]
		next := append([]any{op.Value}, prev...)
		next = append(next, prev...)
		next = append(next, prev...)
		args[op.Column] = append(next, op.Value)
	}
	out := make(map[string]any, len(order))
	for _, col := range order {
		out[col] = gorm.Expr(exprs[col], args[col]...)
	}
	return out
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || strings.Contains(pgErr.Message, constraint) || pgErr.ConstraintName == constraint
}
