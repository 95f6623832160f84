package store

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/csql"
)

// Column declares one column of a table
type Column struct {
	Name string
	// Type is the SQL type including constraints, for example `varchar NOT NULL DEFAULT ''`
	Type string
	// References names a table whose "ID" this column refers to
	References string
	// OnDelete is the referential action, CASCADE if empty
	OnDelete string
}

// Table declares a table. Only declared columns are ever read or written.
type Table struct {
	Name string
	// Item names a single row in error messages, for example "issue"
	Item    string
	Columns []Column
	// Owner is the column holding the identifier of the owning user
	Owner string
	// Constraints are appended to the column list of the CREATE statement
	Constraints []string
}

// Has returns true if the table declares the column
func (t Table) Has(column string) bool {
	for _, c := range t.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}

// ColumnNames returns the declared column names in declaration order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t Table) item() string {
	if t.Item != "" {
		return t.Item
	}
	return t.Name
}

// CreateStatement returns the CREATE TABLE statement for the table in the
// schema of db
func (t Table) CreateStatement(db *csql.DB) string {
	definitions := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		definition := pq.QuoteIdentifier(c.Name) + " " + c.Type
		if c.References != "" {
			onDelete := c.OnDelete
			if onDelete == "" {
				onDelete = "CASCADE"
			}
			definition += " REFERENCES " + db.Table(c.References) + ` ("ID") ON DELETE ` + onDelete
		}
		definitions = append(definitions, definition)
	}
	definitions = append(definitions, t.Constraints...)
	return "CREATE TABLE IF NOT EXISTS " + db.Table(t.Name) + " (" + strings.Join(definitions, ", ") + ");"
}

// Migrate creates the tables in the given order if they do not exist yet.
// Referenced tables must come before the tables referencing them.
func Migrate(ctx context.Context, db *csql.DB, tables ...Table) error {
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, t.CreateStatement(db)); err != nil {
			return errors.Wrapf(err, "cannot create table %s", t.Name)
		}
	}
	return nil
}

// selectList returns the quoted column list, each column optionally prefixed by alias
func selectList(columns []string, alias string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
		if alias != "" {
			quoted[i] = alias + "." + quoted[i]
		}
	}
	return strings.Join(quoted, ", ")
}

// classify turns constraint violations into client errors and wraps
// everything else as an upstream failure
func classify(err error, format string, args ...interface{}) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return core.Validation("record already exists", pqErr.Detail)
		case "foreign_key_violation":
			return core.Validation("referenced record does not exist", pqErr.Detail)
		case "not_null_violation":
			return core.Validation("missing required field", pqErr.Column)
		case "invalid_text_representation", "invalid_datetime_format", "datetime_field_overflow":
			return core.Validation("invalid field value", pqErr.Message)
		}
	}
	return errors.Wrapf(err, format, args...)
}
