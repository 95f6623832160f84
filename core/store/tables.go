package store

const (
	serial    = "SERIAL PRIMARY KEY"
	created   = "timestamp NOT NULL DEFAULT now()"
	modified  = "timestamp"
	text      = "varchar NOT NULL DEFAULT ''"
	reference = "integer NOT NULL"
)

// CounterTable declares an event table counting rows of resource
func CounterTable(name, resource string) Table {
	return Table{
		Name: name,
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "resourceID", Type: reference, References: resource},
			{Name: "dateCreated", Type: created},
		},
	}
}

// LinkTable declares a relation table. Each pair exists at most once.
func LinkTable(name, left, leftTable, right, rightTable string) Table {
	return Table{
		Name: name,
		Columns: []Column{
			{Name: left, Type: reference, References: leftTable},
			{Name: right, Type: reference, References: rightTable},
		},
		Constraints: []string{`PRIMARY KEY ("` + left + `", "` + right + `")`},
	}
}

// the tables of the community database
var (
	Users = Table{
		Name: "users",
		Item: "user",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "username", Type: "varchar(32) NOT NULL UNIQUE"},
			{Name: "email", Type: "varchar(64) NOT NULL UNIQUE"},
			{Name: "password", Type: "varchar NOT NULL"},
			{Name: "passwordSalt", Type: text},
			{Name: "firstName", Type: text},
			{Name: "lastName", Type: text},
			{Name: "about", Type: text},
			{Name: "avatarURL", Type: text},
			{Name: "role", Type: "varchar(16) NOT NULL DEFAULT 'user'"},
			{Name: "dateRegistered", Type: created},
			{Name: "dateModified", Type: modified},
		},
	}

	Locations = Table{
		Name:  "locations",
		Item:  "location",
		Owner: "authorID",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "latitude", Type: "double precision NOT NULL"},
			{Name: "longitude", Type: "double precision NOT NULL"},
			{Name: "authorID", Type: reference, References: "users"},
			{Name: "dateCreated", Type: created},
		},
	}

	Issues = Table{
		Name:  "issues",
		Item:  "issue",
		Owner: "authorID",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "title", Type: "varchar(255) NOT NULL"},
			{Name: "allText", Type: "text NOT NULL"},
			{Name: "summary", Type: text},
			{Name: "imageURL", Type: text},
			{Name: "status", Type: "varchar(32) NOT NULL DEFAULT 'Open'"},
			{Name: "locationID", Type: "integer", References: "locations", OnDelete: "SET NULL"},
			{Name: "authorID", Type: reference, References: "users"},
			{Name: "dateCreated", Type: created},
			{Name: "dateModified", Type: modified},
		},
	}

	Meetings = Table{
		Name:  "meetings",
		Item:  "meeting",
		Owner: "authorID",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "title", Type: "varchar(255) NOT NULL"},
			{Name: "allText", Type: "text NOT NULL"},
			{Name: "summary", Type: text},
			{Name: "imageURL", Type: text},
			{Name: "start_time", Type: "timestamp NOT NULL"},
			{Name: "end_time", Type: "timestamp NOT NULL"},
			{Name: "locationID", Type: "integer", References: "locations", OnDelete: "SET NULL"},
			{Name: "authorID", Type: reference, References: "users"},
			{Name: "dateCreated", Type: created},
			{Name: "dateModified", Type: modified},
		},
	}

	Announcements = Table{
		Name:  "announcements",
		Item:  "announcement",
		Owner: "authorID",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "title", Type: "varchar(255) NOT NULL"},
			{Name: "allText", Type: "text NOT NULL"},
			{Name: "summary", Type: text},
			{Name: "imageURL", Type: text},
			{Name: "authorID", Type: reference, References: "users"},
			{Name: "dateCreated", Type: created},
			{Name: "dateModified", Type: modified},
		},
	}

	Categories = Table{
		Name: "categories",
		Item: "category",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "name", Type: "varchar(255) NOT NULL UNIQUE"},
			{Name: "description", Type: text},
		},
	}

	Statuses = Table{
		Name: "statuses",
		Item: "status",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "name", Type: "varchar(255) NOT NULL UNIQUE"},
			{Name: "description", Type: text},
		},
	}

	Comments = Table{
		Name:  "comments",
		Item:  "comment",
		Owner: "authorID",
		Columns: []Column{
			{Name: "ID", Type: serial},
			{Name: "issuesID", Type: reference, References: "issues"},
			{Name: "authorID", Type: reference, References: "users"},
			{Name: "allText", Type: "text NOT NULL"},
			{Name: "dateCreated", Type: created},
			{Name: "dateModified", Type: modified},
		},
	}

	IssueLikes      = LinkTable("issueLikes", "issueID", "issues", "userID", "users")
	IssueCategories = LinkTable("issueCategories", "issueID", "issues", "categoriesID", "categories")
	IssueStatus     = LinkTable("issueStatus", "issueID", "issues", "statusID", "statuses")

	IssuesViews        = CounterTable("issuesViews", "issues")
	MeetingsViews      = CounterTable("meetingsViews", "meetings")
	AnnouncementsViews = CounterTable("announcementsViews", "announcements")
)

// All lists every table in creation order
var All = []Table{
	Users, Locations, Issues, Meetings, Announcements, Categories, Statuses, Comments,
	IssueLikes, IssueCategories, IssueStatus,
	IssuesViews, MeetingsViews, AnnouncementsViews,
}
