package backend

import (
	"fmt"
	"net/http"
	"time"

	"github.com/harman-mundh/localcommunity/core/access"
)

// the API versions with a root and a private greeting
var apiVersions = []struct {
	prefix string
	name   string
}{
	{prefix: "/api/v1", name: "V1"},
	{prefix: "/api/v2", name: "V2"},
}

// handleSpecial adds the public root and the private greeting of each API
// version
func (b *Backend) handleSpecial() {
	for _, version := range apiVersions {
		name := version.name
		root := func(w http.ResponseWriter, r *http.Request) {
			b.respond(w, http.StatusOK, map[string]string{
				"message": "PUBLIC PAGE: You requested a new message URI (root) of the API " + name,
			})
		}
		b.handle(version.prefix, root, http.MethodGet)
		b.handle(version.prefix+"/", root, http.MethodGet)

		b.handle(version.prefix+"/private", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
			b.respond(w, http.StatusOK, fmt.Sprintf("Hello %s you registered on %s on %s",
				requester.Username, requester.DateRegistered.Format(time.RFC3339), name))
		}), http.MethodGet)
	}
}
