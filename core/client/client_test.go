package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harman-mundh/localcommunity/core/access"
)

func echoRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Authorization", r.Header.Get("Authorization"))
		if requester := access.RequesterFromContext(r.Context()); requester != nil {
			w.Header().Set("X-Requester", requester.Username)
		}
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		}
		if len(body) == 0 {
			body = []byte(`{"ok":true}`)
		}
		w.Write(body)
	})
	router.HandleFunc("/body", func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			http.Error(w, `{"error":"nil body"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
	router.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"issue not found"}`, http.StatusNotFound)
	})
	router.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("upload")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"name":"` + header.Filename + `","size":` + strconv.Itoa(len(data)) + `}`))
	})
	return router
}

func TestRawMethods(t *testing.T) {
	c := NewWithRouter(echoRouter())

	var out map[string]interface{}
	status, err := c.RawGet("/echo", &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["ok"])

	var created map[string]interface{}
	status, err = c.RawPost("/echo", map[string]interface{}{"title": "pothole"}, &created)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, map[string]interface{}{"title": "pothole"}, created)

	var raw []byte
	_, err = c.RawPut("/echo", []byte(`{"a":1}`), &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	status, err = c.RawDelete("/echo", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestRequestWithoutBodyHasEmptyBody(t *testing.T) {
	c := NewWithRouter(echoRouter())
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		status, err := c.Do(method, "/body", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status, method)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	c := NewWithRouter(echoRouter())
	status, err := c.RawGet("/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue not found")

	var out map[string]interface{}
	status, err = c.Do(http.MethodGet, "/missing", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "issue not found", out["error"])
}

func TestCredentials(t *testing.T) {
	c := NewWithRouter(echoRouter())

	_, header, err := c.WithToken("abc").RawGetWithHeader("/echo", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", header.Get("X-Authorization"))

	_, header, err = c.WithBasicAuth("alice", "secret").RawGetWithHeader("/echo", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, header.Get("X-Authorization"), "Basic ")

	_, header, err = c.WithRequester(&access.Requester{ID: 5, Username: "alice"}).RawGetWithHeader("/echo", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", header.Get("X-Requester"))
}

func TestWithHeaderDoesNotLeak(t *testing.T) {
	base := NewWithRouter(echoRouter())
	_ = base.WithHeader("X-Test", "1")
	assert.Empty(t, base.defaultHeaders)
}

func TestPostMultipart(t *testing.T) {
	c := NewWithRouter(echoRouter())
	var out map[string]interface{}
	status, err := c.PostMultipart("/upload", "upload", "image.png", []byte("png"), &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "image.png", out["name"])
	assert.Equal(t, float64(3), out["size"])
}

func TestNewWithURL(t *testing.T) {
	server := httptest.NewServer(echoRouter())
	defer server.Close()

	var out map[string]interface{}
	status, err := NewWithURL(server.URL+"/").WithHeader("Accept", "application/json").RawGet("/echo", &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["ok"])
}
