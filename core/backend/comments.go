package backend

import (
	"net/http"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
)

const commentsPath = "/api/v1/comments"

func (b *Backend) comments() *resource {
	return &resource{
		name:       access.ResourceComments,
		path:       commentsPath,
		store:      b.stores.Comments,
		schema:     "comment",
		publicRead: true,
		owner:      core.FieldAuthorID,
	}
}

// handleComments adds the routes of single comments. Comments are listed and
// created below their issue.
func (b *Backend) handleComments() {
	rc := b.comments()
	itemRoute := rc.path + "/{id:[0-9]+}"

	b.handle(itemRoute, func(w http.ResponseWriter, r *http.Request) {
		record, err := b.read(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, record)
	}, http.MethodGet)

	b.handle(itemRoute, b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		res, err := b.delete(r, rc, requester)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, res)
	}), http.MethodDelete)
}

func (b *Backend) listComments(w http.ResponseWriter, r *http.Request, issues *resource) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := b.load(r, issues, id); err != nil {
		b.fail(w, r, err)
		return
	}
	records, err := b.stores.Comments.Where(r.Context(), "issuesID", id)
	if err != nil {
		b.fail(w, r, upstream("4750", err))
		return
	}
	b.respond(w, http.StatusOK, records)
}

// addComment creates a comment on the issue. The issue and author are taken
// from the route and the requester, never from the body.
func (b *Backend) addComment(w http.ResponseWriter, r *http.Request, issues *resource, requester *access.Requester) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	rc := b.comments()
	body, err := b.decodeBody(r, rc.schema, core.Record{"issuesID": id, core.FieldAuthorID: requester.ID})
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := b.load(r, issues, id); err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := authorize(requester, core.OperationCreate, rc.name, nil); err != nil {
		b.fail(w, r, err)
		return
	}
	result, err := rc.store.Add(r.Context(), body)
	if err != nil {
		b.fail(w, r, upstream("4751", err))
		return
	}
	b.emit(r, rc.name, core.OperationCreate, result.InsertedID, requester, body)
	b.respond(w, http.StatusCreated, created{ID: result.InsertedID, Created: true, Link: rc.itemPath(result.InsertedID)})
}
