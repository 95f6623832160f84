package backend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/pagination"
)

const usersPath = "/api/v1/users"

// minimum length of a search term
const minSearchLength = 3

var userColumns = pagination.Columns{
	Default: "dateRegistered",
	Allowed: []string{"dateRegistered", "username"},
}

func (b *Backend) users() *resource {
	return &resource{
		name:         access.ResourceUsers,
		path:         usersPath,
		store:        b.stores.Users,
		schema:       "user",
		updateSchema: "userUpdate",
		columns:      userColumns,
		beforeWrite:  hashPasswordField,
	}
}

// hashPasswordField replaces a plaintext password by its bcrypt hash
func hashPasswordField(changes core.Record) error {
	password, ok := changes["password"].(string)
	if !ok {
		return nil
	}
	hash, err := access.HashPassword(password)
	if err != nil {
		return upstream("4780", err)
	}
	changes["password"] = hash
	return nil
}

// login is the body of a successful login
type login struct {
	ID        int64             `json:"ID"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	AvatarURL string            `json:"avatarURL"`
	Links     map[string]string `json:"links"`
	Token     string            `json:"token"`
}

func (b *Backend) handleUsers() {
	rc := b.users()
	itemRoute := rc.path + "/{id:[0-9]+}"

	b.handle(rc.path, b.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		records, err := b.list(r, rc)
		if err != nil {
			b.fail(w, r, err)
			return
		}
		b.respond(w, http.StatusOK, records)
	}), http.MethodGet)

	b.handle(rc.path, func(w http.ResponseWriter, r *http.Request) {
		b.register(w, r, rc)
	}, http.MethodPost)

	b.handle(rc.path+"/login", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.login(w, r, rc, requester)
	}), http.MethodPost)

	b.handle(rc.path+"/search", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		b.searchUsers(w, r, rc, requester)
	}), http.MethodGet)

	b.handle(itemRoute, b.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		b.readUser(w, r, rc)
	}), http.MethodGet)

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
}

// register creates a new account. New accounts always get the user role.
func (b *Backend) register(w http.ResponseWriter, r *http.Request, rc *resource) {
	body, err := b.decodeBody(r, rc.schema, nil)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	delete(body, "passwordSalt")
	body["role"] = access.RoleUser
	if err := hashPasswordField(body); err != nil {
		b.fail(w, r, err)
		return
	}
	result, err := rc.store.Add(r.Context(), body)
	if err != nil {
		b.fail(w, r, upstream("4781", err))
		return
	}
	b.emit(r, rc.name, core.OperationCreate, result.InsertedID, nil, body)
	b.respond(w, http.StatusCreated, created{ID: result.InsertedID, Created: true, Link: rc.itemPath(result.InsertedID)})
}

// login returns the profile of the requester and a fresh token
func (b *Backend) login(w http.ResponseWriter, r *http.Request, rc *resource, requester *access.Requester) {
	if b.tokens == nil {
		b.fail(w, r, upstream("4782", errors.New("no token issuer configured")))
		return
	}
	token, err := b.tokens.Issue(requester)
	if err != nil {
		b.fail(w, r, upstream("4782", err))
		return
	}
	b.respond(w, http.StatusOK, login{
		ID:        requester.ID,
		Username:  requester.Username,
		Email:     requester.Email,
		AvatarURL: requester.AvatarURL,
		Links:     map[string]string{"self": rc.itemPath(requester.ID)},
		Token:     token,
	})
}

// readUser returns the permitted fields of a user. The response carries an
// ETag and Last-Modified and is answered with 304 when the client's copy is
// current.
func (b *Backend) readUser(w http.ResponseWriter, r *http.Request, rc *resource) {
	record, err := b.read(r, rc)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	jsonData, err := json.MarshalWithOption(record, json.DisableHTMLEscape())
	if err != nil {
		b.fail(w, r, upstream("4783", err))
		return
	}
	etag := bytesToEtag(jsonData)
	w.Header().Set("Etag", etag)
	lastModified, hasLastModified := userLastModified(record)
	if hasLastModified {
		w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}

	if ifNoneMatch := r.Header.Get("If-None-Match"); ifNoneMatch != "" {
		if ifNoneMatchFound(ifNoneMatch, etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else if hasLastModified {
		if since, err := http.ParseTime(r.Header.Get("If-Modified-Since")); err == nil && !lastModified.Truncate(time.Second).After(since) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonData)
}

// userLastModified returns the modification time of the user, falling back
// to its registration
func userLastModified(record core.Record) (time.Time, bool) {
	for _, field := range []string{core.FieldDateModified, "dateRegistered"} {
		if t, ok := record[field].(time.Time); ok && !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

func (b *Backend) searchUsers(w http.ResponseWriter, r *http.Request, rc *resource, requester *access.Requester) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < minSearchLength {
		b.fail(w, r, core.Validation("the search term must have at least 3 characters"))
		return
	}
	decision, err := authorize(requester, core.OperationList, rc.name, nil)
	if err != nil {
		b.fail(w, r, err)
		return
	}
	records, err := rc.store.Search(r.Context(), "email", q, pagination.MaxLimit)
	if err != nil {
		b.fail(w, r, upstream("4784", err))
		return
	}
	out := make([]core.Record, len(records))
	for i, record := range records {
		out[i] = decision.Filter(record)
	}
	b.respond(w, http.StatusOK, out)
}
