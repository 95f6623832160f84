/*
Package projection reduces records to a subset of their fields.

A projection is written the way permissions and the fields query parameter
spell it: either an explicit allow-list

	firstName, lastName, email

or a wildcard with exclusions

	*, !password, !passwordSalt

Names that do not exist on a record are ignored.
*/
package projection

import (
	"strings"

	"github.com/harman-mundh/localcommunity/core"
)

// Protected fields never survive ForWrite. locationID is only set through
// the locations routes.
var Protected = []string{core.FieldID, core.FieldDateCreated, "dateRegistered", core.FieldAuthorID, "userID", "locationID"}

// Fields is a parsed projection
type Fields struct {
	wildcard bool
	names    map[string]bool
}

// All is the unrestricted projection
var All = Fields{wildcard: true}

// None lets no field through
var None = Fields{}

// Parse parses projection expressions. Each argument may itself contain a
// comma separated list.
func Parse(expressions ...string) Fields {
	f := Fields{names: map[string]bool{}}
	for _, expr := range expressions {
		for _, part := range strings.Split(expr, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "":
			case part == "*":
				f.wildcard = true
			case strings.HasPrefix(part, "!"):
				if name := strings.TrimSpace(part[1:]); name != "" {
					f.names[name] = false
				}
			default:
				f.names[part] = true
			}
		}
	}
	return f
}

// Allows returns true if the named field passes the projection
func (f Fields) Allows(field string) bool {
	allowed, listed := f.names[field]
	if f.wildcard {
		return !listed || allowed
	}
	return allowed
}

// IsAll returns true for a wildcard projection without exclusions
func (f Fields) IsAll() bool {
	if !f.wildcard {
		return false
	}
	for _, allowed := range f.names {
		if !allowed {
			return false
		}
	}
	return true
}

// Apply returns a new record containing only the allowed fields of r
func (f Fields) Apply(r core.Record) core.Record {
	out := core.Record{}
	for k, v := range r {
		if f.Allows(k) {
			out[k] = v
		}
	}
	return out
}

// ForWrite applies the projection to a client supplied body and then drops
// the identifier, creation timestamp and owner fields.
func (f Fields) ForWrite(r core.Record) core.Record {
	out := f.Apply(r)
	for _, p := range Protected {
		delete(out, p)
	}
	return out
}

// Intersect returns an allow-list of those names that f allows. It combines a
// permission's fields with the fields query parameter.
func (f Fields) Intersect(names []string) Fields {
	out := Fields{names: map[string]bool{}}
	for _, n := range names {
		if f.Allows(n) {
			out.names[n] = true
		}
	}
	return out
}
