package backend

import (
	"net/http"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/pagination"
)

// the order columns of posts
var postColumns = pagination.Columns{
	Default: core.FieldDateCreated,
	Allowed: []string{core.FieldDateCreated, core.FieldDateModified},
}

const issuesPath = "/api/v1/issues"

func (b *Backend) issues() *resource {
	return &resource{
		name:         access.ResourceIssues,
		path:         issuesPath,
		store:        b.stores.Issues,
		views:        b.stores.IssuesViews,
		schema:       "issue",
		updateSchema: "issueUpdate",
		columns:      postColumns,
		publicList:   true,
		owner:        core.FieldAuthorID,
	}
}

func (b *Backend) handleIssues() {
	rc := b.issues()
	itemRoute := rc.path + "/{id:[0-9]+}"

	b.handleCRUD(rc, func(w http.ResponseWriter, r *http.Request) {
		record, err := b.read(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.attachLocation(r, record)
		b.respond(w, http.StatusOK, record)
	})

	b.handle(itemRoute+"/solve", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.solveIssue(w, r, rc, requester)
	}), http.MethodPut)

	// likes
	b.handle(itemRoute+"/likes", func(w http.ResponseWriter, r *http.Request) {
		b.likesCount(w, r, rc)
	}, http.MethodGet)
	b.handle(itemRoute+"/likes", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.like(w, r, rc, requester, true)
	}), http.MethodPost)
	b.handle(itemRoute+"/likes", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.like(w, r, rc, requester, false)
	}), http.MethodDelete)

	// categories and statuses
	for _, rel := range []*issueRelation{
		{route: "categories", variable: "cid", resourceName: access.ResourceCategories, links: b.stores.IssueCategories, target: b.stores.Categories},
		{route: "statuses", variable: "sid", resourceName: access.ResourceStatuses, links: b.stores.IssueStatuses, target: b.stores.Statuses},
	} {
		rel := rel
		relationRoute := itemRoute + "/" + rel.route
		b.handle(relationRoute, func(w http.ResponseWriter, r *http.Request) {
			b.listRelated(w, r, rc, rel)
		}, http.MethodGet)
		b.handle(relationRoute+"/{"+rel.variable+":[0-9]+}", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
			b.relate(w, r, rc, rel, requester, true)
		}), http.MethodPost)
		b.handle(relationRoute+"/{"+rel.variable+":[0-9]+}", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
			b.relate(w, r, rc, rel, requester, false)
		}), http.MethodDelete)
	}

	// comments
	b.handle(itemRoute+"/comments", func(w http.ResponseWriter, r *http.Request) {
		b.listComments(w, r, rc)
	}, http.MethodGet)
	b.handle(itemRoute+"/comments", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.addComment(w, r, rc, requester)
	}), http.MethodPost)

	b.handleLocations(rc)
}

// solveIssue sets the status of the issue to Solved
func (b *Backend) solveIssue(w http.ResponseWriter, r *http.Request, rc *resource, requester *access.Requester) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	record, err := b.load(r, rc, id)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := authorize(requester, core.OperationUpdate, rc.name, record); err != nil {
		b.fail(w, r, err)
		return
	}
	if err := b.applyUpdate(r, rc, requester, id, core.Record{"status": "Solved"}); err != nil {
		b.fail(w, r, err)
		return
	}
	b.respond(w, http.StatusCreated, updated{ID: id, Updated: true, Link: rc.itemPath(id)})
}

func (b *Backend) likesCount(w http.ResponseWriter, r *http.Request, rc *resource) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := b.load(r, rc, id); err != nil {
		b.fail(w, r, err)
		return
	}
	likes, err := b.stores.Likes.Count(r.Context(), id)
	if err != nil {
		b.fail(w, r, upstream("4740", err))
		return
	}
	b.respond(w, http.StatusOK, map[string]interface{}{"ID": id, "likes": likes})
}

// like registers or withdraws the requester's like
func (b *Backend) like(w http.ResponseWriter, r *http.Request, rc *resource, requester *access.Requester, like bool) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	record, err := b.load(r, rc, id)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := authorize(requester, core.OperationRead, rc.name, record); err != nil {
		b.fail(w, r, err)
		return
	}

	if like {
		result, err := b.stores.Likes.Link(r.Context(), id, requester.ID)
		if err != nil {
			b.fail(w, r, upstream("4741", err))
			return
		}
		if result.AffectedRows == 0 {
			b.fail(w, r, core.NoOp("issue already liked", false))
			return
		}
		b.emit(r, "likes", core.OperationCreate, id, requester, nil)
		b.respond(w, http.StatusOK, map[string]string{"message": "liked"})
		return
	}

	result, err := b.stores.Likes.Unlink(r.Context(), id, requester.ID)
	if err != nil {
		b.fail(w, r, upstream("4742", err))
		return
	}
	if result.AffectedRows == 0 {
		b.fail(w, r, core.NoOp("like not found", true))
		return
	}
	b.emit(r, "likes", core.OperationDelete, id, requester, nil)
	b.respond(w, http.StatusOK, map[string]string{"message": "disliked"})
}

// issueRelation is a link from issues to categories or statuses
type issueRelation struct {
	route        string
	variable     string
	resourceName string
	links        Links
	target       Resources
}

func (b *Backend) listRelated(w http.ResponseWriter, r *http.Request, rc *resource, rel *issueRelation) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	if _, err := b.load(r, rc, id); err != nil {
		b.fail(w, r, err)
		return
	}
	records, err := rel.links.List(r.Context(), id)
	if err != nil {
		b.fail(w, r, upstream("4743", err))
		return
	}
	b.respond(w, http.StatusOK, records)
}

// relate adds or removes a category or status of an issue.
//
// Categories may be changed by whoever may update the issue. Statuses are
// managed by whoever may create or delete statuses.
func (b *Backend) relate(w http.ResponseWriter, r *http.Request, rc *resource, rel *issueRelation, requester *access.Requester, add bool) {
	id, err := pathID(r, "id")
	if err != nil {
		b.fail(w, r, err)
		return
	}
	targetID, err := pathID(r, rel.variable)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	issue, err := b.load(r, rc, id)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	target, err := rel.target.GetByID(r.Context(), targetID)
	if err != nil {
		b.fail(w, r, upstream("4744", err))
		return
	}

	if rel.resourceName == access.ResourceStatuses {
		op := core.OperationCreate
		if !add {
			op = core.OperationDelete
		}
		_, err = authorize(requester, op, rel.resourceName, target)
	} else {
		_, err = authorize(requester, core.OperationUpdate, rc.name, issue)
	}
	if err != nil {
		b.fail(w, r, err)
		return
	}

	if add {
		result, err := rel.links.Link(r.Context(), id, targetID)
		if err != nil {
			b.fail(w, r, upstream("4745", err))
			return
		}
		if result.AffectedRows == 0 {
			b.fail(w, r, core.NoOp(rel.route+" already added", false))
			return
		}
		b.emit(r, "issue"+rel.route, core.OperationCreate, id, requester, core.Record{rel.variable: targetID})
		b.respond(w, http.StatusCreated, map[string]interface{}{"ID": id, "added": true})
		return
	}

	result, err := rel.links.Unlink(r.Context(), id, targetID)
	if err != nil {
		b.fail(w, r, upstream("4746", err))
		return
	}
	if result.AffectedRows == 0 {
		b.fail(w, r, core.NoOp(rel.route+" not linked", true))
		return
	}
	b.emit(r, "issue"+rel.route, core.OperationDelete, id, requester, core.Record{rel.variable: targetID})
	b.respond(w, http.StatusOK, map[string]interface{}{"ID": id, "removed": true})
}
