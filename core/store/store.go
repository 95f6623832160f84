/*
Package store executes parameterized CRUD statements against the tables of the
community database.

A Store serves one declared Table. Column names never come from client input:
records are matched against the table declaration and anything undeclared is
ignored, so that values are the only thing a client controls. Every statement
takes its values as positional parameters.
*/
package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/csql"
	"github.com/harman-mundh/localcommunity/core/pagination"
)

// Result describes the outcome of a mutation
type Result struct {
	InsertedID   int64 `json:"insertedID,omitempty"`
	AffectedRows int64 `json:"affectedRows"`
}

// managed columns are maintained by the database and never written by clients
var managed = map[string]bool{
	core.FieldID:           true,
	core.FieldDateCreated:  true,
	core.FieldDateModified: true,
	"dateRegistered":       true,
}

// Store executes statements against one table
type Store struct {
	db    *csql.DB
	table Table
	name  string
	cols  string
}

// New returns a store for the table
func New(db *csql.DB, table Table) *Store {
	return &Store{
		db:    db,
		table: table,
		name:  db.Table(table.Name),
		cols:  selectList(table.ColumnNames(), ""),
	}
}

// Table returns the table declaration of the store
func (s *Store) Table() Table {
	return s.table
}

// Migrate creates the table of the store
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db, s.table)
}

// GetByID returns the row with the identifier, or an error matching
// core.ErrNotFound
func (s *Store) GetByID(ctx context.Context, id int64) (core.Record, error) {
	return s.FindBy(ctx, core.FieldID, id)
}

// FindBy returns the first row where column equals value, or an error
// matching core.ErrNotFound
func (s *Store) FindBy(ctx context.Context, column string, value interface{}) (core.Record, error) {
	if !s.table.Has(column) {
		return nil, errors.Errorf("table %s has no column %s", s.table.Name, column)
	}
	query := "SELECT " + s.cols + " FROM " + s.name + " WHERE " + pq.QuoteIdentifier(column) + " = $1 LIMIT 1;"
	records, err := s.query(ctx, query, value)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.NotFound(s.table.item())
	}
	return records[0], nil
}

// GetAll returns one page of rows. Ties on the order column are broken by
// the identifier, so repeated calls return the same sequence.
func (s *Store) GetAll(ctx context.Context, spec pagination.Spec) ([]core.Record, error) {
	order, err := s.orderBy(spec)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + s.cols + " FROM " + s.name + " " + order + " LIMIT $1 OFFSET $2;"
	return s.query(ctx, query, spec.Limit, spec.Offset())
}

// Where returns all rows where column equals value, ordered by identifier
func (s *Store) Where(ctx context.Context, column string, value interface{}) ([]core.Record, error) {
	if !s.table.Has(column) {
		return nil, errors.Errorf("table %s has no column %s", s.table.Name, column)
	}
	query := "SELECT " + s.cols + " FROM " + s.name + " WHERE " + pq.QuoteIdentifier(column) + ` = $1 ORDER BY "ID" ASC;`
	return s.query(ctx, query, value)
}

// Search returns up to limit rows where column contains term, ignoring case
func (s *Store) Search(ctx context.Context, column, term string, limit int) ([]core.Record, error) {
	if !s.table.Has(column) {
		return nil, errors.Errorf("table %s has no column %s", s.table.Name, column)
	}
	if limit < 1 || limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	query := "SELECT " + s.cols + " FROM " + s.name + " WHERE " + pq.QuoteIdentifier(column) + ` ILIKE $1 ORDER BY "ID" ASC LIMIT $2;`
	return s.query(ctx, query, "%"+escapeLike(term)+"%", limit)
}

// Add inserts the declared columns of record, except those maintained by the
// database, and returns the generated identifier
func (s *Store) Add(ctx context.Context, record core.Record) (Result, error) {
	var (
		columns []string
		values  []interface{}
	)
	for _, c := range s.table.Columns {
		if managed[c.Name] {
			continue
		}
		if v, ok := record[c.Name]; ok {
			columns = append(columns, c.Name)
			values = append(values, v)
		}
	}

	query := "INSERT INTO " + s.name
	if len(columns) == 0 {
		query += " DEFAULT VALUES"
	} else {
		query += " (" + selectList(columns, "") + ") VALUES (" + parameters(1, len(columns)) + ")"
	}
	query += ` RETURNING "ID";`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, values...).Scan(&id); err != nil {
		return Result{}, classify(err, "cannot insert into %s", s.table.Name)
	}
	return Result{InsertedID: id, AffectedRows: 1}, nil
}

// Update writes the declared columns of record to the row with the
// identifier. The identifier, the creation date and the owner column are never
// written. dateModified is set if the table has it.
func (s *Store) Update(ctx context.Context, id int64, record core.Record) (Result, error) {
	var (
		sets   []string
		values []interface{}
	)
	for _, c := range s.table.Columns {
		if managed[c.Name] || c.Name == s.table.Owner {
			continue
		}
		if v, ok := record[c.Name]; ok {
			values = append(values, v)
			sets = append(sets, pq.QuoteIdentifier(c.Name)+" = $"+strconv.Itoa(len(values)))
		}
	}
	if len(sets) == 0 {
		return Result{}, core.Validation("no updatable fields given")
	}
	if s.table.Has(core.FieldDateModified) {
		sets = append(sets, `"dateModified" = now()`)
	}
	values = append(values, id)
	query := "UPDATE " + s.name + " SET " + strings.Join(sets, ", ") + ` WHERE "ID" = $` + strconv.Itoa(len(values)) + ";"
	return s.exec(ctx, query, values...)
}

// DelByID deletes the row with the identifier
func (s *Store) DelByID(ctx context.Context, id int64) (Result, error) {
	return s.exec(ctx, "DELETE FROM "+s.name+` WHERE "ID" = $1;`, id)
}

func (s *Store) orderBy(spec pagination.Spec) (string, error) {
	order := spec.Order
	if order == "" {
		order = core.FieldID
	}
	if !s.table.Has(order) {
		return "", errors.Errorf("table %s has no column %s", s.table.Name, order)
	}
	direction := spec.Direction
	if direction != pagination.Ascending {
		direction = pagination.Descending
	}
	clause := "ORDER BY " + pq.QuoteIdentifier(order) + " " + string(direction)
	if order != core.FieldID {
		clause += `, "ID" ` + string(direction)
	}
	return clause, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]core.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "cannot query %s", s.table.Name)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot scan %s", s.table.Name)
	}
	return records, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, classify(err, "cannot modify %s", s.table.Name)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return Result{}, errors.Wrap(err, "cannot read affected rows")
	}
	return Result{AffectedRows: count}, nil
}

// scanRecords reads all rows into records keyed by column name. Byte slices
// are turned into strings so that records serialize as text.
func scanRecords(rows *sql.Rows) ([]core.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	records := []core.Record{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		record := make(core.Record, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				record[c] = string(b)
			} else {
				record[c] = values[i]
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func parameters(first, n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = "$" + strconv.Itoa(first+i)
	}
	return strings.Join(p, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
