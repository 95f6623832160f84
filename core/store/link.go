package store

import (
	"context"

	"github.com/lib/pq"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/csql"
)

// Counter records events against a resource row, one row per event. It
// serves the view tables.
type Counter struct {
	db    *csql.DB
	table Table
	name  string
}

// NewCounter returns a counter over a table declared with CounterTable
func NewCounter(db *csql.DB, table Table) *Counter {
	return &Counter{db: db, table: table, name: db.Table(table.Name)}
}

// Increment records one event for the resource
func (c *Counter) Increment(ctx context.Context, resourceID int64) error {
	_, err := c.db.ExecContext(ctx, "INSERT INTO "+c.name+` ("resourceID") VALUES ($1);`, resourceID)
	if err != nil {
		return classify(err, "cannot increment %s", c.table.Name)
	}
	return nil
}

// Count returns the number of events recorded for the resource
func (c *Counter) Count(ctx context.Context, resourceID int64) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, "SELECT count(*) FROM "+c.name+` WHERE "resourceID" = $1;`, resourceID).Scan(&count)
	if err != nil {
		return 0, classify(err, "cannot count %s", c.table.Name)
	}
	return count, nil
}

// Link maintains a many-to-many relation between two tables. Left is the
// owning side, for example the issue of issueCategories.
type Link struct {
	db          *csql.DB
	table       Table
	name        string
	left, right string
}

// NewLink returns a link over a table declared with LinkTable
func NewLink(db *csql.DB, table Table) *Link {
	return &Link{
		db:    db,
		table: table,
		name:  db.Table(table.Name),
		left:  pq.QuoteIdentifier(table.Columns[0].Name),
		right: pq.QuoteIdentifier(table.Columns[1].Name),
	}
}

// Link relates left to right. Linking an existing pair affects no rows.
func (l *Link) Link(ctx context.Context, left, right int64) (Result, error) {
	return l.exec(ctx, "INSERT INTO "+l.name+" ("+l.left+", "+l.right+") VALUES ($1, $2) ON CONFLICT DO NOTHING;", left, right)
}

// Unlink removes the relation between left and right
func (l *Link) Unlink(ctx context.Context, left, right int64) (Result, error) {
	return l.exec(ctx, "DELETE FROM "+l.name+" WHERE "+l.left+" = $1 AND "+l.right+" = $2;", left, right)
}

// Count returns the number of relations of left
func (l *Link) Count(ctx context.Context, left int64) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(ctx, "SELECT count(*) FROM "+l.name+" WHERE "+l.left+" = $1;", left).Scan(&count)
	if err != nil {
		return 0, classify(err, "cannot count %s", l.table.Name)
	}
	return count, nil
}

// List returns the rows of target related to left
func (l *Link) List(ctx context.Context, left int64, target *Store) ([]core.Record, error) {
	query := "SELECT " + selectList(target.table.ColumnNames(), "t") +
		" FROM " + target.name + " t JOIN " + l.name + " l ON t.\"ID\" = l." + l.right +
		" WHERE l." + l.left + ` = $1 ORDER BY t."ID" ASC;`
	return target.query(ctx, query, left)
}

func (l *Link) exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, classify(err, "cannot modify %s", l.table.Name)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	return Result{AffectedRows: count}, nil
}
