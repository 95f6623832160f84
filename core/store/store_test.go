package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/csql"
	"github.com/harman-mundh/localcommunity/core/pagination"
)

func newMock(t *testing.T) (*csql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return csql.New(db, "community"), mock
}

var issueColumns = `"ID", "title", "allText", "summary", "imageURL", "status", "locationID", "authorID", "dateCreated", "dateModified"`

func TestGetByID(t *testing.T) {
	db, mock := newMock(t)
	categories := New(db, Categories)

	mock.ExpectQuery(`SELECT "ID", "name", "description" FROM "community"."categories" WHERE "ID" = $1 LIMIT 1;`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "name", "description"}).AddRow(int64(3), "Roads", []byte("potholes")))

	record, err := categories.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, core.Record{"ID": int64(3), "name": "Roads", "description": "potholes"}, record)
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	categories := New(db, Categories)

	mock.ExpectQuery(`SELECT "ID", "name", "description" FROM "community"."categories" WHERE "ID" = $1 LIMIT 1;`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "name", "description"}))

	_, err := categories.GetByID(context.Background(), 42)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Equal(t, "category not found", err.Error())
}

func TestGetAll(t *testing.T) {
	db, mock := newMock(t)
	issues := New(db, Issues)

	mock.ExpectQuery(`SELECT `+issueColumns+` FROM "community"."issues" ORDER BY "dateCreated" ASC, "ID" ASC LIMIT $1 OFFSET $2;`).
		WithArgs(10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "title"}).AddRow(int64(11), "Pothole").AddRow(int64(12), "Graffiti"))

	spec := pagination.Spec{Page: 2, Limit: 10, Order: "dateCreated", Direction: pagination.Ascending}
	records, err := issues.GetAll(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Graffiti", records[1]["title"])
}

func TestGetAll_EmptyPage(t *testing.T) {
	db, mock := newMock(t)
	issues := New(db, Issues)

	mock.ExpectQuery(`SELECT `+issueColumns+` FROM "community"."issues" ORDER BY "ID" DESC LIMIT $1 OFFSET $2;`).
		WithArgs(100, 9900).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	records, err := issues.GetAll(context.Background(), pagination.Spec{Page: 100, Limit: 100})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetAll_UndeclaredOrder(t *testing.T) {
	db, _ := newMock(t)
	_, err := New(db, Issues).GetAll(context.Background(), pagination.Spec{Page: 1, Limit: 10, Order: `title"; DROP TABLE users; --`})
	assert.Error(t, err)
}

func TestAdd(t *testing.T) {
	db, mock := newMock(t)
	categories := New(db, Categories)

	mock.ExpectQuery(`INSERT INTO "community"."categories" ("name", "description") VALUES ($1, $2) RETURNING "ID";`).
		WithArgs("Roads", "potholes and cracks").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(4)))

	res, err := categories.Add(context.Background(), core.Record{
		"ID":          int64(99),
		"name":        "Roads",
		"description": "potholes and cracks",
		"bogus":       true,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{InsertedID: 4, AffectedRows: 1}, res)
}

func TestAdd_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	users := NewUserStore(db)

	mock.ExpectQuery(`INSERT INTO "community"."users" ("username", "email", "password") VALUES ($1, $2, $3) RETURNING "ID";`).
		WithArgs("alice", "alice@example.com", "hash").
		WillReturnError(&pq.Error{Code: "23505", Detail: "Key (username)=(alice) already exists."})

	_, err := users.CreateUser(context.Background(), core.Record{"username": "alice", "email": "alice@example.com", "password": "hash"})
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Equal(t, 400, core.StatusOf(err))
}

func TestAdd_ConnectionFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO "community"."categories" ("name") VALUES ($1) RETURNING "ID";`).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := New(db, Categories).Add(context.Background(), core.Record{"name": "Roads"})
	require.Error(t, err)
	assert.Equal(t, 500, core.StatusOf(err))
	assert.Contains(t, err.Error(), "cannot insert into categories")
}

func TestUpdate(t *testing.T) {
	db, mock := newMock(t)
	issues := New(db, Issues)

	mock.ExpectExec(`UPDATE "community"."issues" SET "title" = $1, "status" = $2, "dateModified" = now() WHERE "ID" = $3;`).
		WithArgs("Deep pothole", "Solved", int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := issues.Update(context.Background(), 12, core.Record{
		"ID":          int64(1),
		"dateCreated": "2020-01-01",
		"authorID":    int64(9),
		"status":      "Solved",
		"title":       "Deep pothole",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AffectedRows)
}

func TestUpdate_NothingToWrite(t *testing.T) {
	db, _ := newMock(t)
	_, err := New(db, Issues).Update(context.Background(), 12, core.Record{"ID": int64(1), "authorID": int64(9)})
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestDelByID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM "community"."meetings" WHERE "ID" = $1;`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := New(db, Meetings).DelByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.AffectedRows)
}

func TestWhereAndSearch(t *testing.T) {
	db, mock := newMock(t)
	comments := New(db, Comments)

	mock.ExpectQuery(`SELECT "ID", "issuesID", "authorID", "allText", "dateCreated", "dateModified" FROM "community"."comments" WHERE "issuesID" = $1 ORDER BY "ID" ASC;`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "allText"}).AddRow(int64(1), "me too"))
	records, err := comments.Where(context.Background(), "issuesID", int64(12))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	users := NewUserStore(db)
	mock.ExpectQuery(`SELECT "ID", "username", "email", "password", "passwordSalt", "firstName", "lastName", "about", "avatarURL", "role", "dateRegistered", "dateModified" FROM "community"."users" WHERE "email" ILIKE $1 ORDER BY "ID" ASC LIMIT $2;`).
		WithArgs(`%al\_i%`, 100).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "email"}).AddRow(int64(5), "al_ice@example.com"))
	records, err = users.Search(context.Background(), "email", "al_i", 0)
	require.NoError(t, err)
	assert.Equal(t, "al_ice@example.com", records[0]["email"])

	_, err = users.Search(context.Background(), "password); --", "x", 10)
	assert.Error(t, err)
}

func TestUserStore_FindByUsername(t *testing.T) {
	db, mock := newMock(t)
	users := NewUserStore(db)
	mock.ExpectQuery(`SELECT "ID", "username", "email", "password", "passwordSalt", "firstName", "lastName", "about", "avatarURL", "role", "dateRegistered", "dateModified" FROM "community"."users" WHERE "username" = $1 LIMIT 1;`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "username", "role"}).AddRow(int64(5), "alice", "user"))

	record, err := users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), record.ID())
}

func TestCounter(t *testing.T) {
	db, mock := newMock(t)
	views := NewCounter(db, IssuesViews)

	mock.ExpectExec(`INSERT INTO "community"."issuesViews" ("resourceID") VALUES ($1);`).
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, views.Increment(context.Background(), 12))

	mock.ExpectQuery(`SELECT count(*) FROM "community"."issuesViews" WHERE "resourceID" = $1;`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	count, err := views.Count(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestLink(t *testing.T) {
	db, mock := newMock(t)
	likes := NewLink(db, IssueLikes)

	mock.ExpectExec(`INSERT INTO "community"."issueLikes" ("issueID", "userID") VALUES ($1, $2) ON CONFLICT DO NOTHING;`).
		WithArgs(int64(12), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	res, err := likes.Link(context.Background(), 12, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.AffectedRows, "liking twice is a no-op")

	mock.ExpectExec(`DELETE FROM "community"."issueLikes" WHERE "issueID" = $1 AND "userID" = $2;`).
		WithArgs(int64(12), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res, err = likes.Unlink(context.Background(), 12, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AffectedRows)
}

func TestLink_List(t *testing.T) {
	db, mock := newMock(t)
	issueCategories := NewLink(db, IssueCategories)

	mock.ExpectQuery(`SELECT t."ID", t."name", t."description" FROM "community"."categories" t JOIN "community"."issueCategories" l ON t."ID" = l."categoriesID" WHERE l."issueID" = $1 ORDER BY t."ID" ASC;`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "name", "description"}).AddRow(int64(4), "Roads", ""))

	records, err := issueCategories.List(context.Background(), 12, New(db, Categories))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{"ID": int64(4), "name": "Roads", "description": ""}}, records)
}

func TestCreateStatement(t *testing.T) {
	db := csql.New(nil, "community")

	statement := IssueLikes.CreateStatement(db)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "community"."issueLikes" (`+
		`"issueID" integer NOT NULL REFERENCES "community"."issues" ("ID") ON DELETE CASCADE, `+
		`"userID" integer NOT NULL REFERENCES "community"."users" ("ID") ON DELETE CASCADE, `+
		`PRIMARY KEY ("issueID", "userID"));`, statement)

	statement = Issues.CreateStatement(db)
	assert.Contains(t, statement, `"locationID" integer REFERENCES "community"."locations" ("ID") ON DELETE SET NULL`)
	assert.Contains(t, statement, `"status" varchar(32) NOT NULL DEFAULT 'Open'`)
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)
	for _, table := range All {
		mock.ExpectExec(table.CreateStatement(db)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db, All...))

	// referenced tables are created first
	seen := map[string]bool{}
	for _, table := range All {
		for _, c := range table.Columns {
			if c.References != "" {
				assert.True(t, seen[c.References], "%s references %s before it exists", table.Name, c.References)
			}
		}
		seen[table.Name] = true
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b\\c`, escapeLike(`a_b\c`))
}
