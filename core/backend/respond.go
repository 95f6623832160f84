package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/logger"
	"github.com/harman-mundh/localcommunity/core/projection"
	"github.com/harman-mundh/localcommunity/core/schema"
)

// maximum size of a JSON request body
const maxBodySize = 1 << 20

// errorResponse is the body of every failed request
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (b *Backend) respond(w http.ResponseWriter, status int, body interface{}) {
	jsonData, err := json.MarshalWithOption(body, json.DisableHTMLEscape())
	if err != nil {
		logger.Default().WithError(err).Errorf("Error 4701: cannot marshal response")
		http.Error(w, "Error 4701", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// fail writes the error response for err. Client errors echo their message,
// upstream failures only their error code; the cause is logged.
func (b *Backend) fail(w http.ResponseWriter, r *http.Request, err error) {
	rlog := logger.FromContext(r.Context())
	status := core.StatusOf(err)
	b.metrics.failures.WithLabelValues(strconv.Itoa(status)).Inc()

	var e *core.Error
	if status == http.StatusInternalServerError || !errors.As(err, &e) {
		message := "Error 4700"
		if errors.As(err, &e) && strings.HasPrefix(e.Message, "Error ") {
			message = e.Message
		}
		rlog.WithError(err).Errorln(message)
		b.respond(w, http.StatusInternalServerError, errorResponse{Error: message})
		return
	}

	rlog.WithError(err).Infoln("request failed with status", status)
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Basic realm="community"`)
		b.respond(w, status, errorResponse{Error: "unauthorized"})
	case http.StatusForbidden:
		b.respond(w, status, errorResponse{Error: "forbidden"})
	default:
		b.respond(w, status, errorResponse{Error: e.Message, Details: e.Details})
	}
}

// upstream tags an unclassified failure with an error code. Core errors
// pass unchanged.
func upstream(code string, err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		return err
	}
	return core.Upstream("Error "+code, err)
}

// authenticated rejects anonymous requests with 401
func (b *Backend) authenticated(handler func(w http.ResponseWriter, r *http.Request, requester *access.Requester)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, err := access.RequireRequester(r.Context())
		if err != nil {
			b.fail(w, r, err)
			return
		}
		handler(w, r, requester)
	}
}

// requireAuth is authenticated for handlers that do not need the requester
func (b *Backend) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return b.authenticated(func(w http.ResponseWriter, r *http.Request, _ *access.Requester) {
		handler(w, r)
	})
}

// pathID parses the named numeric route variable
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id < 1 {
		return 0, core.Validation("invalid " + name)
	}
	return id, nil
}

// decodeBody reads a JSON object from the request body, adds the injected
// fields and validates the result against the named schema
func (b *Backend) decodeBody(r *http.Request, schemaName string, inject core.Record) (core.Record, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, core.Validation("cannot read request body", err.Error())
	}
	record := core.Record{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, core.Validation("the body is not a valid JSON object", err.Error())
		}
	}
	if record == nil {
		record = core.Record{}
	}
	for _, p := range projection.Protected {
		delete(record, p)
	}
	for k, v := range inject {
		record[k] = v
	}
	if err := b.validator.ValidateStruct(map[string]interface{}(record), schema.ID(schemaName)); err != nil {
		return nil, err
	}
	return record, nil
}

// bytesToEtag returns a strong etag for a response body
func bytesToEtag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// ifNoneMatchFound returns true if etag is found in ifNoneMatch. The format of ifNoneMatch is one
// of the following:
// If-None-Match: "<etag_value>"
// If-None-Match: "<etag_value>", "<etag_value>", …
// If-None-Match: *
func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	t := strings.Trim(strings.TrimPrefix(etag, "W/"), " \"")
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.Trim(strings.TrimPrefix(strings.TrimSpace(s), "W/"), " \"")
		if s == t {
			return true
		}
	}
	return false
}
