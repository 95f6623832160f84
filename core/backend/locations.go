package backend

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/logger"
)

const fieldLocationID = "locationID"

// handleLocations adds the location routes below the items of rc. A location
// belongs to exactly one issue or meeting, whose owner manages it.
func (b *Backend) handleLocations(rc *resource) {
	route := rc.path + "/{id:[0-9]+}/locations"

	b.handle(route, func(w http.ResponseWriter, r *http.Request) {
		_, location, err := b.loadLocation(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, location)
	}, http.MethodGet)

	b.handle(route, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.addLocation(w, r, rc, requester)
	}), http.MethodPost)

	b.handle(route, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.removeLocation(w, r, rc, requester)
	}), http.MethodDelete)
}

// loadLocation returns the parent record and its location
func (b *Backend) loadLocation(r *http.Request, rc *resource) (core.Record, core.Record, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, nil, err
	}
	parent, err := b.load(r, rc, id)
	if err != nil {
		return nil, nil, err
	}
	locationID, ok := parent.Int64(fieldLocationID)
	if !ok || locationID == 0 {
		return parent, nil, core.NotFound("location")
	}
	location, err := b.stores.Locations.GetByID(r.Context(), locationID)
	if err != nil {
		return parent, nil, upstream("4770", err)
	}
	return parent, location, nil
}

func (b *Backend) addLocation(w http.ResponseWriter, r *http.Request, rc *resource, requester *access.Requester) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	body, err := b.decodeBody(r, "location", core.Record{core.FieldAuthorID: requester.ID})
	if err != nil {
		b.fail(w, r, err)
		return
	}
	parent, err := b.load(r, rc, id)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := authorize(requester, core.OperationCreate, access.ResourceLocations, parent); err != nil {
		b.fail(w, r, err)
		return
	}
	if locationID, ok := parent.Int64(fieldLocationID); ok && locationID != 0 {
		b.fail(w, r, core.NoOp(rc.name+" already has a location", false))
		return
	}

	result, err := b.stores.Locations.Add(r.Context(), body)
	if err != nil {
		b.fail(w, r, upstream("4771", err))
		return
	}
	if err := b.applyUpdate(r, rc, requester, id, core.Record{fieldLocationID: result.InsertedID}); err != nil {
		if _, delErr := b.stores.Locations.DelByID(r.Context(), result.InsertedID); delErr != nil {
			logger.FromContext(r.Context()).WithError(delErr).Errorf("Error 4776: cannot remove orphaned location %d", result.InsertedID)
		}
		b.fail(w, r, err)
		return
	}
	b.emit(r, access.ResourceLocations, core.OperationCreate, result.InsertedID, requester, body)
	b.respond(w, http.StatusCreated, created{ID: result.InsertedID, Created: true, Link: rc.itemPath(id) + "/locations"})
}

func (b *Backend) removeLocation(w http.ResponseWriter, r *http.Request, rc *resource, requester *access.Requester) {
	parent, location, err := b.loadLocation(r, rc)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	// both the parent and the location itself must belong to the requester
	for _, owned := range []core.Record{parent, location} {
		if _, err := authorize(requester, core.OperationDelete, access.ResourceLocations, owned); err != nil {
			b.fail(w, r, err)
			return
		}
	}
	if err := b.applyUpdate(r, rc, requester, parent.ID(), core.Record{fieldLocationID: nil}); err != nil {
		b.fail(w, r, err)
		return
	}
	result, err := b.stores.Locations.DelByID(r.Context(), location.ID())
	if err != nil {
		b.fail(w, r, upstream("4772", err))
		return
	}
	if result.AffectedRows == 0 {
		b.fail(w, r, core.NoOp("location not found", true))
		return
	}
	b.emit(r, access.ResourceLocations, core.OperationDelete, location.ID(), requester, nil)
	b.respond(w, http.StatusOK, deleted{ID: location.ID(), Deleted: true})
}

// attachLocation adds the location of the record and its reverse geocoding.
// Both are best effort: failures end up as an error object in their field.
func (b *Backend) attachLocation(r *http.Request, record core.Record) {
	locationID, ok := record.Int64(fieldLocationID)
	if !ok || locationID == 0 {
		return
	}
	rlog := logger.FromContext(r.Context())
	location, err := b.stores.Locations.GetByID(r.Context(), locationID)
	if err != nil {
		rlog.WithError(err).Errorf("Error 4773: cannot load location %d", locationID)
		record["location"] = errorResponse{Error: "location unavailable"}
		return
	}
	record["location"] = location

	if b.geocoder == nil {
		return
	}
	latitude, okLat := toFloat(location["latitude"])
	longitude, okLng := toFloat(location["longitude"])
	if !okLat || !okLng {
		record["geocodingResponse"] = errorResponse{Error: "invalid coordinates"}
		return
	}
	response, err := b.geocoder.Reverse(r.Context(), latitude, longitude)
	if err != nil {
		rlog.WithError(err).Errorf("Error 4774: cannot geocode location %d", locationID)
		record["geocodingResponse"] = errorResponse{Error: "geocoding unavailable"}
		return
	}
	record["geocodingResponse"] = response
}

func toFloat(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case int64:
		return float64(f), true
	case int:
		return float64(f), true
	case json.Number:
		x, err := f.Float64()
		return x, err == nil
	case string:
		x, err := strconv.ParseFloat(f, 64)
		return x, err == nil
	case []byte:
		x, err := strconv.ParseFloat(string(f), 64)
		return x, err == nil
	}
	return 0, false
}
