package backend

import (
	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/pagination"
)

// catalog selects one of the admin managed lookup tables
type catalog int

const (
	catalogCategories catalog = iota
	catalogStatuses
)

var catalogColumns = pagination.Columns{
	Default: core.FieldID,
	Allowed: []string{core.FieldID, "name"},
}

func (b *Backend) catalog(c catalog) *resource {
	rc := &resource{
		columns:    catalogColumns,
		publicList: true,
		publicRead: true,
	}
	switch c {
	case catalogCategories:
		rc.name = access.ResourceCategories
		rc.path = "/api/v1/categories"
		rc.store = b.stores.Categories
		rc.schema = "category"
	case catalogStatuses:
		rc.name = access.ResourceStatuses
		rc.path = "/api/v1/statuses"
		rc.store = b.stores.Statuses
		rc.schema = "status"
	}
	rc.updateSchema = rc.schema
	return rc
}

// handleCatalog adds the routes of categories or statuses. Everybody may
// read them, only admins change them.
func (b *Backend) handleCatalog(c catalog) {
	b.handleCRUD(b.catalog(c), nil)
}
