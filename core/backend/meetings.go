package backend

import (
	"net/http"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/logger"
)

const meetingsPath = "/api/v2/meetings"

// the fields of meetings in the list
var meetingSummaryFields = []string{
	core.FieldID, "title", "allText", "start_time", "end_time",
	fieldLocationID, core.FieldDateCreated, core.FieldAuthorID,
}

func (b *Backend) meetings() *resource {
	return &resource{
		name:         access.ResourceMeetings,
		path:         meetingsPath,
		store:        b.stores.Meetings,
		views:        b.stores.MeetingsViews,
		schema:       "meeting",
		updateSchema: "meetingUpdate",
		columns:      postColumns,
		publicList:   true,
		owner:        core.FieldAuthorID,
		summary:      meetingSummary,
	}
}

func meetingSummary(rc *resource, record core.Record) core.Record {
	summary := core.Record{}
	for _, field := range meetingSummaryFields {
		if v, ok := record[field]; ok {
			summary[field] = v
		}
	}
	self := rc.itemPath(record.ID())
	summary["links"] = map[string]string{
		"views": self + "/views",
		"self":  self,
	}
	return summary
}

func (b *Backend) handleMeetings() {
	rc := b.meetings()

	b.handleCRUD(rc, func(w http.ResponseWriter, r *http.Request) {
		record, err := b.read(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.attachLocation(r, record)
		b.attachWeather(r, record)
		b.respond(w, http.StatusOK, record)
	})
	b.handleLocations(rc)
}

// attachWeather adds the current forecast. A failure ends up as an error
// object in the weather field.
func (b *Backend) attachWeather(r *http.Request, record core.Record) {
	if b.weather == nil {
		return
	}
	forecast, err := b.weather.Forecast(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4775: cannot get weather forecast")
		record["weather"] = errorResponse{Error: "weather unavailable"}
		return
	}
	record["weather"] = forecast
}
