package backend

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/backend/kss"
	"github.com/harman-mundh/localcommunity/core/csql"
	"github.com/harman-mundh/localcommunity/core/events"
	"github.com/harman-mundh/localcommunity/core/logger"
	"github.com/harman-mundh/localcommunity/core/pagination"
	"github.com/harman-mundh/localcommunity/core/schema"
	"github.com/harman-mundh/localcommunity/core/store"
	"github.com/harman-mundh/localcommunity/schemas"
)

// Resources is the storage of one resource table. *store.Store implements it.
type Resources interface {
	GetByID(ctx context.Context, id int64) (core.Record, error)
	FindBy(ctx context.Context, column string, value interface{}) (core.Record, error)
	GetAll(ctx context.Context, spec pagination.Spec) ([]core.Record, error)
	Where(ctx context.Context, column string, value interface{}) ([]core.Record, error)
	Search(ctx context.Context, column, term string, limit int) ([]core.Record, error)
	Add(ctx context.Context, record core.Record) (store.Result, error)
	Update(ctx context.Context, id int64, record core.Record) (store.Result, error)
	DelByID(ctx context.Context, id int64) (store.Result, error)
}

// Users is the storage of the users table. *store.UserStore implements it.
type Users interface {
	Resources
	access.UserLookup
}

// Counter counts views of a resource row. *store.Counter implements it.
type Counter interface {
	Increment(ctx context.Context, resourceID int64) error
	Count(ctx context.Context, resourceID int64) (int64, error)
}

// Likes relates issues to the users who like them. *store.Link implements it.
type Likes interface {
	Link(ctx context.Context, left, right int64) (store.Result, error)
	Unlink(ctx context.Context, left, right int64) (store.Result, error)
	Count(ctx context.Context, left int64) (int64, error)
}

// Links relates issues to rows of another table and lists the related rows
type Links interface {
	Likes
	List(ctx context.Context, left int64) ([]core.Record, error)
}

// Stores bundles the storage of every resource
type Stores struct {
	Users         Users
	Issues        Resources
	Meetings      Resources
	Announcements Resources
	Categories    Resources
	Statuses      Resources
	Comments      Resources
	Locations     Resources

	IssuesViews        Counter
	MeetingsViews      Counter
	AnnouncementsViews Counter

	Likes           Likes
	IssueCategories Links
	IssueStatuses   Links
}

// joinedLink lists the rows of the target table related through a link table
type joinedLink struct {
	links  *store.Link
	target *store.Store
}

func (j joinedLink) Link(ctx context.Context, left, right int64) (store.Result, error) {
	return j.links.Link(ctx, left, right)
}

func (j joinedLink) Unlink(ctx context.Context, left, right int64) (store.Result, error) {
	return j.links.Unlink(ctx, left, right)
}

func (j joinedLink) Count(ctx context.Context, left int64) (int64, error) {
	return j.links.Count(ctx, left)
}

func (j joinedLink) List(ctx context.Context, left int64) ([]core.Record, error) {
	return j.links.List(ctx, left, j.target)
}

// SQLStores returns the stores of the community tables in db
func SQLStores(db *csql.DB) *Stores {
	categories := store.New(db, store.Categories)
	statuses := store.New(db, store.Statuses)
	return &Stores{
		Users:         store.NewUserStore(db),
		Issues:        store.New(db, store.Issues),
		Meetings:      store.New(db, store.Meetings),
		Announcements: store.New(db, store.Announcements),
		Categories:    categories,
		Statuses:      statuses,
		Comments:      store.New(db, store.Comments),
		Locations:     store.New(db, store.Locations),

		IssuesViews:        store.NewCounter(db, store.IssuesViews),
		MeetingsViews:      store.NewCounter(db, store.MeetingsViews),
		AnnouncementsViews: store.NewCounter(db, store.AnnouncementsViews),

		Likes:           store.NewLink(db, store.IssueLikes),
		IssueCategories: joinedLink{links: store.NewLink(db, store.IssueCategories), target: categories},
		IssueStatuses:   joinedLink{links: store.NewLink(db, store.IssueStatus), target: statuses},
	}
}

// Geocoder resolves coordinates to addresses. *geocoding.Client implements it.
type Geocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (json.RawMessage, error)
}

// Forecaster returns the current weather forecast. *weather.Service implements it.
type Forecaster interface {
	Forecast(ctx context.Context) (json.RawMessage, error)
}

// Backend is the community REST backend
type Backend struct {
	db        *csql.DB
	router    *mux.Router
	stores    *Stores
	validator *schema.Validator
	tokens    *access.Tokens
	kss       kss.Driver
	geocoder  Geocoder
	weather   Forecaster
	publisher events.Publisher
	metrics   *metrics
	// Registry is the prometheus registry served on /metrics
	Registry *prometheus.Registry
}

// Builder is a builder helper for the Backend
type Builder struct {
	// DB is a postgres database. It is mandatory unless Stores is given.
	DB *csql.DB
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Stores replaces the SQL stores over DB. This is optional.
	Stores *Stores
	// UpdateSchema creates the database tables if they do not exist
	UpdateSchema bool
	// Validator validates request bodies. Defaults to the embedded schemas.
	Validator *schema.Validator
	// Tokens issues and verifies JWTs. Without it only basic authorization works.
	Tokens *access.Tokens
	// KssDriver stores uploaded images. The upload routes are only added with a driver.
	KssDriver kss.Driver
	// Geocoder resolves the locations of issues and meetings. This is optional.
	Geocoder Geocoder
	// Weather serves the forecast. The weather route is only added with a forecaster.
	Weather Forecaster
	// Publisher receives an event for every mutation. This is optional.
	Publisher events.Publisher
}

// New realizes the actual backend. It creates the sql tables (if requested)
// and adds all routes and middlewares to the router.
func New(bb *Builder) *Backend {
	if bb.Router == nil {
		panic("Router is missing")
	}
	stores := bb.Stores
	if stores == nil {
		if bb.DB == nil {
			panic("DB is missing")
		}
		stores = SQLStores(bb.DB)
	}
	if bb.UpdateSchema {
		if bb.DB == nil {
			panic("UpdateSchema requires DB")
		}
		if err := store.Migrate(context.Background(), bb.DB, store.All...); err != nil {
			panic(err)
		}
	}
	validator := bb.Validator
	if validator == nil {
		var err error
		validator, err = schema.NewValidatorFromFS(schemas.FS)
		if err != nil {
			panic(err)
		}
	}

	b := &Backend{
		db:        bb.DB,
		router:    bb.Router,
		stores:    stores,
		validator: validator,
		tokens:    bb.Tokens,
		kss:       bb.KssDriver,
		geocoder:  bb.Geocoder,
		weather:   bb.Weather,
		publisher: bb.Publisher,
		Registry:  prometheus.NewRegistry(),
	}
	b.metrics = newMetrics(b.Registry, bb.DB)

	logger.AddRequestID(b.router)
	b.handleRecovery()
	b.handleCORS()
	b.handleCompression()
	b.router.Use(b.metrics.middleware)
	b.router.Use(access.NewAuthenticationMiddleware(&access.AuthenticationBuilder{
		Users:  stores.Users,
		Tokens: bb.Tokens,
	}))

	b.handleRoutes()
	return b
}

// Router returns the router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

func (b *Backend) handleRoutes() {
	logger.Default().Debugln("backend: HandleRoutes")

	access.HandleAuthorizationRoute(b.router)
	b.handleVersion()
	b.handleMetrics()
	b.handleHealth()
	b.handleSpecial()

	b.handleIssues()
	b.handleMeetings()
	b.handleAnnouncements()
	b.handleUsers()
	b.handleCatalog(catalogCategories)
	b.handleCatalog(catalogStatuses)
	b.handleComments()
	if b.kss != nil {
		b.handleUploads()
	}
	if b.weather != nil {
		b.handleWeather()
	}
}

// handle registers a route answering the methods and OPTIONS for CORS preflights
func (b *Backend) handle(path string, handler http.HandlerFunc, methods ...string) {
	logger.Default().Debugln("  handle route:", path, methods)
	b.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		handler(w, r)
	}).Methods(append(methods, http.MethodOptions)...)
}
