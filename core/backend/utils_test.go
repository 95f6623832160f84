package backend_test

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/harman-mundh/localcommunity/core/access"
	"github.com/harman-mundh/localcommunity/core/backend"
	"github.com/harman-mundh/localcommunity/core/backend/kss"
	"github.com/harman-mundh/localcommunity/core/client"
	"github.com/harman-mundh/localcommunity/core/events"
)

// the accounts of every test service
var (
	admin = &access.Requester{ID: 1, Role: access.RoleAdmin, Username: "admin", Email: "admin@example.com"}
	alice = &access.Requester{ID: 2, Role: access.RoleUser, Username: "alice", Email: "alice@example.com",
		DateRegistered: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	bob = &access.Requester{ID: 3, Role: access.RoleUser, Username: "bob", Email: "bob@example.com"}
)

const testSecret = "test-secret"

// recordingPublisher keeps the published events
type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// TestService is a backend over in-memory stores
type TestService struct {
	Router    *mux.Router
	Backend   *backend.Backend
	Fakes     *fakeStores
	Publisher *recordingPublisher
	Tokens    *access.Tokens

	client client.Client
}

type serviceOption func(*backend.Builder)

func withGeocoder(g backend.Geocoder) serviceOption {
	return func(bb *backend.Builder) { bb.Geocoder = g }
}

func withWeather(f backend.Forecaster) serviceOption {
	return func(bb *backend.Builder) { bb.Weather = f }
}

func withKss(d kss.Driver) serviceOption {
	return func(bb *backend.Builder) { bb.KssDriver = d }
}

// CreateTestService creates a backend with the admin, alice and bob accounts.
// Passwords equal the usernames.
func CreateTestService(t *testing.T, options ...serviceOption) *TestService {
	t.Helper()
	s := &TestService{
		Router:    mux.NewRouter(),
		Fakes:     newFakeStores(),
		Publisher: &recordingPublisher{},
		Tokens:    access.NewTokens(testSecret),
	}
	for _, r := range []*access.Requester{admin, alice, bob} {
		hash, err := access.HashPassword(r.Username)
		if err != nil {
			t.Fatal(err)
		}
		s.Fakes.users.seed(map[string]interface{}{
			"ID":             r.ID,
			"username":       r.Username,
			"email":          r.Email,
			"password":       hash,
			"role":           r.Role,
			"dateRegistered": time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		})
	}

	builder := &backend.Builder{
		Router:    s.Router,
		Stores:    s.Fakes.stores(),
		Tokens:    s.Tokens,
		Publisher: s.Publisher,
	}
	for _, option := range options {
		option(builder)
	}
	s.Backend = backend.New(builder)
	s.client = client.NewWithRouter(s.Router)
	return s
}

// as returns a client acting as the requester
func (s *TestService) as(r *access.Requester) client.Client {
	return s.client.WithRequester(r)
}

// anonymous returns a client without credentials
func (s *TestService) anonymous() client.Client {
	return s.client
}
