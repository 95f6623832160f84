/*
Package backend implements the REST API of the local community service

A backend serves the community tables of a Postgres-SQL database. Every
resource follows the same request pipeline:

	authenticate -> validate -> load existing -> authorize -> mutate or read -> project -> respond

The request body is validated against the JSON schema of the resource. A
missing record is reported with 404 before the permission check, a denied
permission with 403. Reads are projected to the fields the requester may see.

The backend creates the following REST routes:

	GET    /api/v1/issues
	POST   /api/v1/issues
	GET    /api/v1/issues/{id}
	PUT    /api/v1/issues/{id}
	DELETE /api/v1/issues/{id}
	PUT    /api/v1/issues/{id}/solve
	GET    /api/v1/issues/{id}/views
	GET    /api/v1/issues/{id}/likes
	POST   /api/v1/issues/{id}/likes
	DELETE /api/v1/issues/{id}/likes
	GET    /api/v1/issues/{id}/categories
	POST   /api/v1/issues/{id}/categories/{cid}
	DELETE /api/v1/issues/{id}/categories/{cid}
	GET    /api/v1/issues/{id}/statuses
	POST   /api/v1/issues/{id}/statuses/{sid}
	DELETE /api/v1/issues/{id}/statuses/{sid}
	GET    /api/v1/issues/{id}/comments
	POST   /api/v1/issues/{id}/comments
	GET    /api/v1/issues/{id}/locations
	POST   /api/v1/issues/{id}/locations
	DELETE /api/v1/issues/{id}/locations

Meetings (/api/v2/meetings) have the same CRUD, views and locations routes as
issues, announcements (/api/v2/announcements) the same CRUD and views routes.
Categories (/api/v1/categories) and statuses (/api/v1/statuses) have CRUD
routes. Comments are read and deleted under /api/v1/comments/{id}.

The users routes are

	GET    /api/v1/users
	POST   /api/v1/users
	POST   /api/v1/users/login
	GET    /api/v1/users/search?q=
	GET    /api/v1/users/{id}
	PUT    /api/v1/users/{id}
	DELETE /api/v1/users/{id}

List routes accept the query parameters page, limit, order and direction.
The user list also accepts repeated fields parameters, which reduce the
records to the named fields.

With a kss.Driver, images are uploaded as multipart field "upload" to
/api/v1/images and downloaded from /api/v1/images/{uuid}. With a weather
forecaster, /api/v2/weather serves the cached forecast.

Operational routes are /version (admins only), /metrics and /health.
*/
package backend
