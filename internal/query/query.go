// Package query composes read queries over the messages view.
//
// A Query starts as "every indexed message, log order" and is narrowed by
// Modifiers. Joins are keyed by name so two fragments needing the same join
// share it, and every predicate is AND-ed, so the row set does not depend on
// the order modifiers are applied in.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ssbsql/internal/db"
	"ssbsql/internal/models"
)

var ErrQuery = errors.New("query failed")

type join struct {
	name string
	sql  string
	// fanout joins can match several rows per message.
	fanout bool
}

type clause struct {
	sql  string
	args []any
}

// Query is a SELECT over the messages view under construction.
type Query struct {
	joins []join
	where []clause
	limit int
	err   error
}

// Modifier narrows or extends a Query.
type Modifier func(*Query)

// New returns a query for every indexed message.
func New(mods ...Modifier) *Query {
	return Apply(&Query{}, mods...)
}

// Apply runs mods against q in order and returns q.
func Apply(q *Query, mods ...Modifier) *Query {
	for _, mod := range mods {
		if mod != nil {
			mod(q)
		}
	}
	return q
}

// Join adds a named join. A second join with the same name is ignored.
func (q *Query) Join(name, sql string) {
	q.addJoin(join{name: name, sql: sql})
}

func (q *Query) addJoin(j join) {
	for _, existing := range q.joins {
		if existing.name == j.name {
			return
		}
	}
	q.joins = append(q.joins, j)
}

// Where adds a predicate AND-ed with the others.
func (q *Query) Where(cond string, args ...any) {
	q.where = append(q.where, clause{sql: cond, args: args})
}

// Fail records a construction error reported when the query runs.
func (q *Query) Fail(format string, args ...any) {
	if q.err == nil {
		q.err = fmt.Errorf(format, args...)
	}
}

// Err returns the first construction error.
func (q *Query) Err() error {
	return q.err
}

// SQL renders the statement and its arguments.
func (q *Query) SQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	for _, j := range q.joins {
		if j.fanout {
			b.WriteString("DISTINCT ")
			break
		}
	}
	b.WriteString(db.MessageColumns)
	b.WriteString("\nFROM messages")
	for _, j := range q.joins {
		b.WriteString("\n")
		b.WriteString(j.sql)
	}

	var args []any
	for i, c := range q.where {
		if i == 0 {
			b.WriteString("\nWHERE ")
		} else {
			b.WriteString("\n  AND ")
		}
		b.WriteString("(")
		b.WriteString(c.sql)
		b.WriteString(")")
		args = append(args, c.args...)
	}
	b.WriteString("\nORDER BY messages.flume_seq ASC")
	if q.limit > 0 {
		b.WriteString("\nLIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	return b.String(), args
}

// Messages runs the query built from mods.
func Messages(ctx context.Context, database *sql.DB, mods ...Modifier) ([]models.IndexedMessage, error) {
	return Run(ctx, database, New(mods...))
}

// Run executes q.
func Run(ctx context.Context, database *sql.DB, q *Query) ([]models.IndexedMessage, error) {
	if err := q.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	stmt, args := q.SQL()
	rows, err := database.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	out := make([]models.IndexedMessage, 0)
	for rows.Next() {
		m, err := db.ScanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrQuery, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return out, nil
}

// Backlinks returns the messages that reference target, other than votes,
// tags, abouts and replies in target's own thread.
func Backlinks(ctx context.Context, database *sql.DB, target string, mods ...Modifier) ([]models.IndexedMessage, error) {
	return Messages(ctx, database, append([]Modifier{BacklinksTo(target)}, mods...)...)
}
