/*
Package client provides easy and fast in-process access to the community REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice for handler tests, and with NewWithURL it talks to a
running service just the same.

	c := client.NewWithRouter(router).WithBasicAuth("alice", "secret")
	var issue map[string]interface{}
	status, err := c.RawGet("/api/v1/issues/12", &issue)
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	username   string
	password   string
	requester  *access.Requester
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithRequester() adds an already authenticated requester to the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client sending the JWT as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithBasicAuth returns a new client sending basic authorization
func (c Client) WithBasicAuth(username, password string) Client {
	c.username = username
	c.password = password
	return c
}

// WithRequester returns a new client that puts the requester straight into the
// request context, bypassing credential checks
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithRequester(requester *access.Requester) Client {
	c.requester = requester
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the client's request context
func (c Client) Context() context.Context {
	ctx := c.ctx
	if c.ctx == nil {
		ctx = context.Background()
	}
	if c.requester != nil {
		ctx = access.ContextWithRequester(ctx, c.requester)
	}
	return ctx
}

// Do sends a request and decodes the response body into result, whatever
// the status code. It only fails when the request cannot be made.
//
// body can be nil, a []byte or anything that marshals to JSON. result can be
// nil, a raw *[]byte or anything JSON unmarshals into.
func (c Client) Do(method, path string, body interface{}, result interface{}) (int, error) {
	status, _, resBody, err := c.roundTrip(method, path, nil, body)
	if err != nil {
		return status, err
	}
	return status, decode(resBody, result)
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.RawGetWithHeader(path, nil, result)
	return status, err
}

// RawGetWithHeader gets the resource from path with additional request
// headers. Expects http.StatusOK as response, http.StatusNoContent and
// http.StatusNotModified pass without a body. Returns the actual http status
// code and the response header.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	status, resHeader, resBody, err := c.roundTrip(http.MethodGet, path, header, nil)
	if err != nil {
		return status, resHeader, err
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		return status, resHeader, nil
	}
	if status != http.StatusOK {
		return status, resHeader, unexpected(status, http.StatusOK, resBody)
	}
	return status, resHeader, decode(resBody, result)
}

// RawGetBlobWithHeader gets a binary resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error.
//
// Returns the actual http status code and the return header
func (c Client) RawGetBlobWithHeader(path string, header map[string]string, blob *[]byte) (int, http.Header, error) {
	return c.RawGetWithHeader(path, header, blob)
}

// RawPostWithHeader posts a resource to path. Expects http.StatusCreated or
// http.StatusOK as response, otherwise it will flag an error. Returns the
// actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPostWithHeader(path string, header map[string]string, body interface{}, result interface{}) (int, error) {
	status, _, resBody, err := c.roundTrip(http.MethodPost, path, header, body)
	if err != nil {
		return status, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return status, unexpected(status, http.StatusCreated, resBody)
	}
	return status, decode(resBody, result)
}

// RawPost posts a resource to path. Expects http.StatusCreated or http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.RawPostWithHeader(path, nil, body, result)
}

// RawPut puts a resource to path. Expects http.StatusOK, http.StatusCreated or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, resBody, err := c.roundTrip(http.MethodPut, path, nil, body)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return status, fmt.Errorf("put got status=%d body=%s", status, strings.TrimSpace(string(resBody)))
	}
	return status, decode(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusOK or
// http.StatusNoContent as response, otherwise it will flag an error.
//
// Returns the actual http status code. result can be nil.
func (c Client) RawDelete(path string, result interface{}) (int, error) {
	status, _, resBody, err := c.roundTrip(http.MethodDelete, path, nil, nil)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return status, unexpected(status, http.StatusOK, resBody)
	}
	return status, decode(resBody, result)
}

// PostMultipart uploads data as the named file field of a multipart form.
// Expects http.StatusCreated as response.
func (c Client) PostMultipart(path, field, filename string, data []byte, result interface{}) (int, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if _, err = fw.Write(data); err != nil {
		return http.StatusBadRequest, err
	}
	w.Close()

	header := map[string]string{"Content-Type": w.FormDataContentType()}
	status, _, resBody, err := c.roundTrip(http.MethodPost, path, header, b.Bytes())
	if err != nil {
		return status, err
	}
	if status != http.StatusCreated {
		return status, unexpected(status, http.StatusCreated, resBody)
	}
	return status, decode(resBody, result)
}

func (c Client) roundTrip(method, path string, header map[string]string, body interface{}) (int, http.Header, []byte, error) {
	reader := io.Reader(http.NoBody)
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		j, err := json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, nil, nil, fmt.Errorf("%s to %s: %w", method, path, err)
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, nil, nil, err
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	for key, value := range header {
		r.Header.Set(key, value)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" {
		r.SetBasicAuth(c.username, c.password)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, res.Header, rec.Body.Bytes(), nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return res.StatusCode, res.Header, resBody, err
}

func decode(body []byte, result interface{}) error {
	if len(body) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = body
		return nil
	}
	return json.Unmarshal(body, result)
}

func unexpected(got, want int, body []byte) error {
	return fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
		got, want, strings.TrimSpace(string(body)))
}
