package backend_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/harman-mundh/localcommunity/core"
	"github.com/harman-mundh/localcommunity/core/backend"
	"github.com/harman-mundh/localcommunity/core/pagination"
	"github.com/harman-mundh/localcommunity/core/store"
)

// fakeTable is an in-memory resource table
type fakeTable struct {
	mu     sync.Mutex
	item   string
	owner  string
	rows   map[int64]core.Record
	nextID int64
	// listErr fails GetAll
	listErr error
	// updateErr fails Update
	updateErr error
}

func newFakeTable(item, owner string) *fakeTable {
	return &fakeTable{item: item, owner: owner, rows: map[int64]core.Record{}, nextID: 1}
}

// seed inserts a row as it is, keeping its ID
func (t *fakeTable) seed(record core.Record) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := record.ID()
	if id == 0 {
		id = t.nextID
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	row := record.Clone()
	row[core.FieldID] = id
	if _, ok := row[core.FieldDateCreated]; !ok {
		row[core.FieldDateCreated] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour)
	}
	t.rows[id] = row
	return id
}

func (t *fakeTable) row(id int64) core.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rows[id]; ok {
		return r.Clone()
	}
	return nil
}

func (t *fakeTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

func (t *fakeTable) sorted() []core.Record {
	records := make([]core.Record, 0, len(t.rows))
	for _, r := range t.rows {
		records = append(records, r.Clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID() < records[j].ID() })
	return records
}

func (t *fakeTable) GetByID(ctx context.Context, id int64) (core.Record, error) {
	if r := t.row(id); r != nil {
		return r, nil
	}
	return nil, core.NotFound(t.item)
}

func (t *fakeTable) FindBy(ctx context.Context, column string, value interface{}) (core.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.sorted() {
		if r[column] == value {
			return r, nil
		}
	}
	return nil, core.NotFound(t.item)
}

func (t *fakeTable) GetAll(ctx context.Context, spec pagination.Spec) ([]core.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listErr != nil {
		return nil, t.listErr
	}
	records := t.sorted()
	if spec.Direction == pagination.Descending {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}
	offset := spec.Offset()
	if offset >= len(records) {
		return []core.Record{}, nil
	}
	end := offset + spec.Limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end], nil
}

func (t *fakeTable) Where(ctx context.Context, column string, value interface{}) ([]core.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	want, _ := core.Record{"v": value}.Int64("v")
	records := []core.Record{}
	for _, r := range t.sorted() {
		if got, ok := r.Int64(column); ok && got == want {
			records = append(records, r)
		}
	}
	return records, nil
}

func (t *fakeTable) Search(ctx context.Context, column, term string, limit int) ([]core.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	records := []core.Record{}
	for _, r := range t.sorted() {
		if strings.Contains(strings.ToLower(r.String(column)), strings.ToLower(term)) {
			records = append(records, r)
		}
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (t *fakeTable) Add(ctx context.Context, record core.Record) (store.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	row := record.Clone()
	row[core.FieldID] = id
	row[core.FieldDateCreated] = time.Now().UTC()
	t.rows[id] = row
	return store.Result{InsertedID: id, AffectedRows: 1}, nil
}

func (t *fakeTable) Update(ctx context.Context, id int64, record core.Record) (store.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.updateErr != nil {
		return store.Result{}, t.updateErr
	}
	row, ok := t.rows[id]
	if !ok {
		return store.Result{}, nil
	}
	for k, v := range record {
		if k == core.FieldID || k == t.owner {
			continue
		}
		row[k] = v
	}
	row[core.FieldDateModified] = time.Now().UTC()
	return store.Result{AffectedRows: 1}, nil
}

func (t *fakeTable) DelByID(ctx context.Context, id int64) (store.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return store.Result{}, nil
	}
	delete(t.rows, id)
	return store.Result{AffectedRows: 1}, nil
}

// fakeUsers is the in-memory users table
type fakeUsers struct {
	*fakeTable
}

func (u fakeUsers) FindByID(ctx context.Context, id int64) (core.Record, error) {
	return u.GetByID(ctx, id)
}

func (u fakeUsers) FindByUsername(ctx context.Context, username string) (core.Record, error) {
	return u.FindBy(ctx, "username", username)
}

// fakeCounter counts views per resource row
type fakeCounter struct {
	mu     sync.Mutex
	counts map[int64]int64
	calls  int
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[int64]int64{}}
}

func (c *fakeCounter) Increment(ctx context.Context, resourceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.counts[resourceID]++
	return nil
}

func (c *fakeCounter) Count(ctx context.Context, resourceID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[resourceID], nil
}

func (c *fakeCounter) incrementCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeLink is an in-memory link table. List resolves the right side in target.
type fakeLink struct {
	mu     sync.Mutex
	pairs  map[[2]int64]bool
	target *fakeTable
}

func newFakeLink(target *fakeTable) *fakeLink {
	return &fakeLink{pairs: map[[2]int64]bool{}, target: target}
}

func (l *fakeLink) Link(ctx context.Context, left, right int64) (store.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := [2]int64{left, right}
	if l.pairs[key] {
		return store.Result{}, nil
	}
	l.pairs[key] = true
	return store.Result{AffectedRows: 1}, nil
}

func (l *fakeLink) Unlink(ctx context.Context, left, right int64) (store.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := [2]int64{left, right}
	if !l.pairs[key] {
		return store.Result{}, nil
	}
	delete(l.pairs, key)
	return store.Result{AffectedRows: 1}, nil
}

func (l *fakeLink) Count(ctx context.Context, left int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for key := range l.pairs {
		if key[0] == left {
			n++
		}
	}
	return n, nil
}

func (l *fakeLink) List(ctx context.Context, left int64) ([]core.Record, error) {
	l.mu.Lock()
	var rights []int64
	for key := range l.pairs {
		if key[0] == left {
			rights = append(rights, key[1])
		}
	}
	l.mu.Unlock()
	sort.Slice(rights, func(i, j int) bool { return rights[i] < rights[j] })
	records := []core.Record{}
	for _, id := range rights {
		if r := l.target.row(id); r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

// fakeGeocoder answers every reverse lookup with the same address
type fakeGeocoder struct {
	err error
}

func (g fakeGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (json.RawMessage, error) {
	if g.err != nil {
		return nil, g.err
	}
	return json.RawMessage(`{"results":[{"formatted_address":"Main Street 1"}],"status":"OK"}`), nil
}

// fakeForecaster returns a fixed forecast
type fakeForecaster struct {
	err error
}

func (f fakeForecaster) Forecast(ctx context.Context) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"DailyForecasts":[{"Date":"2024-05-01"}]}`), nil
}

// fakeStores bundles the fakes behind backend.Stores
type fakeStores struct {
	users, issues, meetings, announcements, categories, statuses, comments, locations *fakeTable

	issuesViews, meetingsViews, announcementsViews *fakeCounter

	likes, issueCategories, issueStatuses *fakeLink
}

func newFakeStores() *fakeStores {
	f := &fakeStores{
		users:              newFakeTable("user", ""),
		issues:             newFakeTable("issue", core.FieldAuthorID),
		meetings:           newFakeTable("meeting", core.FieldAuthorID),
		announcements:      newFakeTable("announcement", core.FieldAuthorID),
		categories:         newFakeTable("category", ""),
		statuses:           newFakeTable("status", ""),
		comments:           newFakeTable("comment", core.FieldAuthorID),
		locations:          newFakeTable("location", core.FieldAuthorID),
		issuesViews:        newFakeCounter(),
		meetingsViews:      newFakeCounter(),
		announcementsViews: newFakeCounter(),
	}
	f.likes = newFakeLink(f.users)
	f.issueCategories = newFakeLink(f.categories)
	f.issueStatuses = newFakeLink(f.statuses)
	return f
}

func (f *fakeStores) stores() *backend.Stores {
	return &backend.Stores{
		Users:              fakeUsers{f.users},
		Issues:             f.issues,
		Meetings:           f.meetings,
		Announcements:      f.announcements,
		Categories:         f.categories,
		Statuses:           f.statuses,
		Comments:           f.comments,
		Locations:          f.locations,
		IssuesViews:        f.issuesViews,
		MeetingsViews:      f.meetingsViews,
		AnnouncementsViews: f.announcementsViews,
		Likes:              f.likes,
		IssueCategories:    f.issueCategories,
		IssueStatuses:      f.issueStatuses,
	}
}

var errUpstream = errors.New("connection refused")
