/*
Package pagination normalizes the page, limit, order and direction query
parameters of list requests.

Normalization never fails. Whatever the client sends, the resulting Spec is
safe to hand to the store: the limit is bounded, the page is positive, and the
order column comes from a fixed per-resource allow-list, so it can be spliced
into an ORDER BY clause.
*/
package pagination

import (
	"net/url"
	"strconv"
)

// defaults and bounds
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Direction is the sort direction of a listing
type Direction string

// the two accepted directions
const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// DefaultDirection is applied when the direction is absent or invalid
const DefaultDirection = Descending

// Columns is the allow-list of order columns for a resource. Default must be
// one of Allowed.
type Columns struct {
	Default string
	Allowed []string
}

// Has returns true if column is in the allow-list
func (c Columns) Has(column string) bool {
	for _, a := range c.Allowed {
		if a == column {
			return true
		}
	}
	return false
}

// Raw holds the unparsed query parameters
type Raw struct {
	Page      string
	Limit     string
	Order     string
	Direction string
}

// Spec is a normalized pagination request
type Spec struct {
	Page      int
	Limit     int
	Order     string
	Direction Direction
}

// Offset returns the row offset of the first record of the page
func (s Spec) Offset() int {
	return (s.Page - 1) * s.Limit
}

// Normalize turns raw parameters into a valid Spec.
//
// A limit above MaxLimit is capped, a limit below 1 or a non numeric one
// resets to DefaultLimit. A page below 1 or a non numeric one resets to 1.
func Normalize(raw Raw, columns Columns) Spec {
	spec := Spec{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		Order:     columns.Default,
		Direction: DefaultDirection,
	}

	if limit, err := strconv.Atoi(raw.Limit); err == nil {
		switch {
		case limit > MaxLimit:
			spec.Limit = MaxLimit
		case limit >= 1:
			spec.Limit = limit
		}
	}
	if page, err := strconv.Atoi(raw.Page); err == nil && page >= 1 {
		spec.Page = page
	}
	if columns.Has(raw.Order) {
		spec.Order = raw.Order
	}
	switch Direction(raw.Direction) {
	case Ascending, Descending:
		spec.Direction = Direction(raw.Direction)
	}
	return spec
}

// FromQuery normalizes the page, limit, order and direction query parameters
func FromQuery(query url.Values, columns Columns) Spec {
	return Normalize(Raw{
		Page:      query.Get("page"),
		Limit:     query.Get("limit"),
		Order:     query.Get("order"),
		Direction: query.Get("direction"),
	}, columns)
}
