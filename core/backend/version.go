package backend

import (
	"net/http"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
)

var (
	// Version is the version of the current build
	Version = "unset"
)

func (b *Backend) handleVersion() {
	b.handle("/version", b.authenticated(func(w http.ResponseWriter, r *http.Request, requester *access.Requester) {
		if !requester.HasRole(access.RoleAdmin) {
			b.fail(w, r, core.Forbidden())
			return
		}
		b.respond(w, http.StatusOK, map[string]string{"version": Version})
	}), http.MethodGet)
}
