package backend

import (
	"net/http"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
)

const announcementsPath = "/api/v2/announcements"

func (b *Backend) announcements() *resource {
	return &resource{
		name:         access.ResourceAnnouncements,
		path:         announcementsPath,
		store:        b.stores.Announcements,
		views:        b.stores.AnnouncementsViews,
		schema:       "announcement",
		updateSchema: "announcementUpdate",
		columns:      postColumns,
		publicList:   true,
		owner:        core.FieldAuthorID,
	}
}

// announcement is the body of a single announcement
type announcement struct {
	Announcement core.Record       `json:"announcement"`
	Links        map[string]string `json:"links"`
}

func (b *Backend) handleAnnouncements() {
	rc := b.announcements()
	b.handleCRUD(rc, func(w http.ResponseWriter, r *http.Request) {
		record, err := b.read(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, announcement{
			Announcement: record,
			Links: map[string]string{
				"goBack": rc.path,
				"self":   r.URL.Path,
			},
		})
	})
}
