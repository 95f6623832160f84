package backend

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/events"
	"github.com/harman-mundh/localcommunity/core/logger"
	"github.com/harman-mundh/localcommunity/core/pagination"
	"github.com/harman-mundh/localcommunity/core/projection"
)

// resource describes one REST collection. Every request on it runs through
// authentication, body validation, loading of the existing record,
// authorization, the actual operation and projection of the result.
type resource struct {
	name         string // resource name of the permission policy
	path         string // collection route, e.g. /api/v1/issues
	store        Resources
	views        Counter
	schema       string
	updateSchema string
	columns      pagination.Columns
	// publicList allows anonymous listing
	publicList bool
	// publicRead allows anonymous reads of single records
	publicRead bool
	// owner is injected with the requester's ID on create
	owner string
	// summary shortens the records of the list, if set
	summary func(rc *resource, record core.Record) core.Record
	// beforeWrite prepares authorized changes before they are stored, if set
	beforeWrite func(changes core.Record) error
}

// created is the body of a successful create
type created struct {
	ID      int64  `json:"ID"`
	Created bool   `json:"created"`
	Link    string `json:"link,omitempty"`
}

// updated is the body of a successful update
type updated struct {
	ID      int64  `json:"ID"`
	Updated bool   `json:"updated"`
	Link    string `json:"link,omitempty"`
}

// deleted is the body of a successful delete
type deleted struct {
	ID      int64 `json:"ID"`
	Deleted bool  `json:"deleted"`
}

func (rc *resource) itemPath(id int64) string {
	return rc.path + "/" + strconv.FormatInt(id, 10)
}

// load returns the existing record or a not found error
func (b *Backend) load(r *http.Request, rc *resource, id int64) (core.Record, error) {
	record, err := rc.store.GetByID(r.Context(), id)
	if err != nil {
		return nil, upstream("4730", err)
	}
	return record, nil
}

// authorize checks the policy and turns a denial into a forbidden error
func authorize(requester *access.Requester, op core.Operation, resourceName string, record core.Record) (access.Decision, error) {
	decision := access.Check(requester, op, resourceName, record)
	if !decision.Granted {
		return decision, core.Forbidden()
	}
	return decision, nil
}

// readDecision returns the decision for reads. Anonymous requests on public
// resources see every field.
func readDecision(requester *access.Requester, op core.Operation, rc *resource, record core.Record) (access.Decision, error) {
	public := rc.publicRead
	if op == core.OperationList {
		public = rc.publicList
	}
	if requester == nil {
		if public {
			return access.Decision{Granted: true, Fields: projection.All}, nil
		}
		return access.Decision{}, core.Unauthorized()
	}
	return authorize(requester, op, rc.name, record)
}

// list returns one page of records, projected by the permission
func (b *Backend) list(r *http.Request, rc *resource) ([]core.Record, error) {
	requester := access.RequesterFromContext(r.Context())
	decision, err := readDecision(requester, core.OperationList, rc, nil)
	if err != nil {
		return nil, err
	}
	query := r.URL.Query()
	if fields := query["fields"]; len(fields) > 0 {
		decision.Fields = decision.Fields.Intersect(fieldNames(fields))
	}
	spec := pagination.FromQuery(query, rc.columns)
	records, err := rc.store.GetAll(r.Context(), spec)
	if err != nil {
		return nil, upstream("4731", err)
	}
	out := make([]core.Record, len(records))
	for i, record := range records {
		out[i] = decision.Filter(record)
		if rc.summary != nil {
			out[i] = rc.summary(rc, out[i])
		}
	}
	return out, nil
}

// fieldNames splits the values of repeated, possibly comma separated fields
// parameters
func fieldNames(values []string) []string {
	var names []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// read loads a single record, counts the view and projects the record
func (b *Backend) read(r *http.Request, rc *resource) (core.Record, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	record, err := b.load(r, rc, id)
	if err != nil {
		return nil, err
	}
	decision, err := readDecision(access.RequesterFromContext(r.Context()), core.OperationRead, rc, record)
	if err != nil {
		return nil, err
	}
	if rc.views != nil {
		b.countView(r, rc, id)
	}
	return decision.Filter(record), nil
}

// countView records a view. Failures are logged and otherwise ignored.
func (b *Backend) countView(r *http.Request, rc *resource, id int64) {
	if err := rc.views.Increment(r.Context(), id); err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4760: cannot count view of %s %d", rc.name, id)
		b.metrics.viewFailures.WithLabelValues(rc.name).Inc()
	}
}

func (b *Backend) create(r *http.Request, rc *resource, requester *access.Requester, inject core.Record) (created, error) {
	if inject == nil {
		inject = core.Record{}
	}
	if rc.owner != "" {
		inject[rc.owner] = requester.ID
	}
	record, err := b.decodeBody(r, rc.schema, inject)
	if err != nil {
		return created{}, err
	}
	if _, err := authorize(requester, core.OperationCreate, rc.name, nil); err != nil {
		return created{}, err
	}
	result, err := rc.store.Add(r.Context(), record)
	if err != nil {
		return created{}, upstream("4732", err)
	}
	if result.AffectedRows == 0 {
		return created{}, core.NoOp(rc.name+" not created", false)
	}
	b.emit(r, rc.name, core.OperationCreate, result.InsertedID, requester, record)
	return created{ID: result.InsertedID, Created: true, Link: rc.itemPath(result.InsertedID)}, nil
}

func (b *Backend) update(r *http.Request, rc *resource, requester *access.Requester) (updated, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return updated{}, err
	}
	body, err := b.decodeBody(r, rc.updateSchema, nil)
	if err != nil {
		return updated{}, err
	}
	record, err := b.load(r, rc, id)
	if err != nil {
		return updated{}, err
	}
	decision, err := authorize(requester, core.OperationUpdate, rc.name, record)
	if err != nil {
		return updated{}, err
	}
	changes := decision.FilterWrite(body)
	if rc.beforeWrite != nil {
		if err := rc.beforeWrite(changes); err != nil {
			return updated{}, err
		}
	}
	if err := b.applyUpdate(r, rc, requester, id, changes); err != nil {
		return updated{}, err
	}
	return updated{ID: id, Updated: true, Link: rc.itemPath(id)}, nil
}

// applyUpdate writes an authorized change set
func (b *Backend) applyUpdate(r *http.Request, rc *resource, requester *access.Requester, id int64, changes core.Record) error {
	result, err := rc.store.Update(r.Context(), id, changes)
	if err != nil {
		return upstream("4733", err)
	}
	if result.AffectedRows == 0 {
		// the record vanished between load and update
		return core.NoOp(rc.name+" not found", true)
	}
	b.emit(r, rc.name, core.OperationUpdate, id, requester, changes)
	return nil
}

func (b *Backend) delete(r *http.Request, rc *resource, requester *access.Requester) (deleted, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return deleted{}, err
	}
	record, err := b.load(r, rc, id)
	if err != nil {
		return deleted{}, err
	}
	if _, err := authorize(requester, core.OperationDelete, rc.name, record); err != nil {
		return deleted{}, err
	}
	result, err := rc.store.DelByID(r.Context(), id)
	if err != nil {
		return deleted{}, upstream("4734", err)
	}
	if result.AffectedRows == 0 {
		return deleted{}, core.NoOp(rc.name+" not found", true)
	}
	b.emit(r, rc.name, core.OperationDelete, id, requester, nil)
	return deleted{ID: id, Deleted: true}, nil
}

func (b *Backend) emit(r *http.Request, resourceName string, op core.Operation, id int64, requester *access.Requester, payload core.Record) {
	b.metrics.mutations.WithLabelValues(resourceName, string(op)).Inc()
	var requesterID int64
	if requester != nil {
		requesterID = requester.ID
	}
	var body interface{}
	if payload != nil {
		// never publish credentials
		body = projection.Parse("*", "!password", "!passwordSalt").Apply(payload)
	}
	events.Emit(r.Context(), b.publisher, events.New(r.Context(), resourceName, op, id, requesterID, body))
}

// handleCRUD adds the list, create, read, update and delete routes of a
// resource. Reads that need more than the projected record pass their own
// read handler.
func (b *Backend) handleCRUD(rc *resource, readHandler http.HandlerFunc) {
	itemRoute := rc.path + "/{id:[0-9]+}"

	b.handle(rc.path, func(w http.ResponseWriter, r *http.Request) {
		records, err := b.list(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, records)
	}, http.MethodGet)

	b.handle(rc.path, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		res, err := b.create(r, rc, requester, nil)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusCreated, res)
	}), http.MethodPost)

	if readHandler == nil {
		readHandler = func(w http.ResponseWriter, r *http.Request) {
			record, err := b.read(r, rc)
			if err != nil {
				b.fail(w, r, err)
				return
			}
			b.respond(w, http.StatusOK, record)
		}
	}
	if !rc.publicRead {
		readHandler = b.requireAuth(readHandler)
	}
	b.handle(itemRoute, readHandler, http.MethodGet)

	b.handle(itemRoute, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		res, err := b.update(r, rc, requester)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, res)
	}), http.MethodPut)

	b.handle(itemRoute, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		res, err := b.delete(r, rc, requester)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, res)
	}), http.MethodDelete)

	if rc.views != nil {
		b.handle(itemRoute+"/views", func(w http.ResponseWriter, r *http.Request) {
			b.viewCount(w, r, rc)
		}, http.MethodGet)
	}
}

func (b *Backend) viewCount(w http.ResponseWriter, r *http.Request, rc *resource) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := b.load(r, rc, id); err != nil {
		b.fail(w, r, err)
		return
	}
	views, err := rc.views.Count(r.Context(), id)
	if err != nil {
		b.fail(w, r, upstream("4735", err))
		return
	}
	b.respond(w, http.StatusOK, map[string]interface{}{"ID": id, "views": views})
}
