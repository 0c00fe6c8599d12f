package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/events"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/doclearn/doclearn/internal/server/moderation"
	profilesrepo "github.com/doclearn/doclearn/internal/server/repositories/profiles"
	refreshtokensrepo "github.com/doclearn/doclearn/internal/server/repositories/refreshtokens"
	specializationsrepo "github.com/doclearn/doclearn/internal/server/repositories/specializations"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func clone(p *models.Profile) *models.Profile {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	out := &models.Profile{}
	if err := json.Unmarshal(b, out); err != nil {
		panic(err)
	}
	return out
}

// fakeProfilesRepo keeps committed rows in memory. Reads hand out copies so
// a rolled back transaction cannot leak mutations into the store.
type fakeProfilesRepo struct {
	rows map[string]*models.Profile

	createErr error
	saveErrs  []error
	saves     int
	lastQuery profilesrepo.PendingQuery
}

func newFakeProfiles(ps ...*models.Profile) *fakeProfilesRepo {
	r := &fakeProfilesRepo{rows: map[string]*models.Profile{}}
	for _, p := range ps {
		if p.Version == 0 {
			p.Version = 1
		}
		r.rows[p.ID] = clone(p)
	}
	return r
}

func (r *fakeProfilesRepo) Create(_ context.Context, p *models.Profile) (*models.Profile, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	p.Version = 1
	r.rows[p.ID] = clone(p)
	return p, nil
}

func (r *fakeProfilesRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	p, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(p), nil
}

func (r *fakeProfilesRepo) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	for _, p := range r.rows {
		if p.Email == strings.ToLower(strings.TrimSpace(email)) {
			return clone(p), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeProfilesRepo) GetForUpdate(ctx context.Context, id string) (*models.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeProfilesRepo) Save(_ context.Context, p *models.Profile) error {
	r.saves++
	if len(r.saveErrs) > 0 {
		err := r.saveErrs[0]
		r.saveErrs = r.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	cur, ok := r.rows[p.ID]
	if !ok || cur.Version != p.Version {
		return common.ErrVersionConflict
	}
	p.Version++
	r.rows[p.ID] = clone(p)
	return nil
}

func (r *fakeProfilesRepo) ListPending(_ context.Context, q profilesrepo.PendingQuery) ([]*models.Profile, int, error) {
	r.lastQuery = q
	var all []*models.Profile
	for _, p := range r.rows {
		if moderation.HasPendingWork(p.PendingChanges) {
			all = append(all, clone(p))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].PendingChanges.SubmittedAt.After(all[j].PendingChanges.SubmittedAt)
	})
	total := len(all)
	if q.Offset >= total {
		return []*models.Profile{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return all[q.Offset:end], total, nil
}

func (r *fakeProfilesRepo) MarkEmailVerified(_ context.Context, id string) error {
	p, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.IsEmailVerified = true
	return nil
}

type fakeRefreshRepo struct {
	tokens map[string]*models.RefreshToken

	createErr error
	findErr   error
	delErr    error
	purged    int64
	deletedBy []string
}

func newFakeRefresh() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, userID, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteByUser(_ context.Context, userID string) error {
	f.deletedBy = append(f.deletedBy, userID)
	for k, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, t := range f.tokens {
		if t.Expires.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	f.purged += n
	return n, nil
}

type fakeSpecsRepo struct {
	entries []models.CatalogSpecialization
}

func (f *fakeSpecsRepo) FindByID(_ context.Context, id string) (*models.CatalogSpecialization, error) {
	for _, e := range f.entries {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSpecsRepo) List(context.Context) ([]models.CatalogSpecialization, error) {
	return f.entries, nil
}

type fakeRepoManager struct {
	p *fakeProfilesRepo
	r *fakeRefreshRepo
	s *fakeSpecsRepo

	specHandles []dbx.DBTX
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profilesrepo.Repository    { return m.p }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}
func (m *fakeRepoManager) Specializations(db dbx.DBTX) specializationsrepo.Repository {
	m.specHandles = append(m.specHandles, db)
	return m.s
}

type fakeRecorder struct {
	submitted map[string]int
	decisions map[string]int
	retries   []int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{submitted: map[string]int{}, decisions: map[string]int{}}
}

func (r *fakeRecorder) FieldsSubmitted(kind string, n int) { r.submitted[kind] += n }
func (r *fakeRecorder) Decision(d string)                  { r.decisions[d]++ }
func (r *fakeRecorder) ObserveRetries(n int)               { r.retries = append(r.retries, n) }

type fakePublisher struct {
	events []events.ModerationEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e events.ModerationEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type catalogFunc func(ctx context.Context, id string) (*models.CatalogSpecialization, error)

func (f catalogFunc) FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error) {
	return f(ctx, id)
}

var testCatalog = catalogFunc(func(_ context.Context, id string) (*models.CatalogSpecialization, error) {
	if id == "cardiology" {
		return &models.CatalogSpecialization{ID: id, Label: "Кардиология", Value: id}, nil
	}
	return nil, common.ErrorNotFound
})

func newEngine() *moderation.Engine {
	n := moderation.NewNormalizer(testCatalog, logging.Nop(), false)
	return moderation.NewEngine(n, moderation.WithClock(func() time.Time { return fixedNow }))
}

type testEnv struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	repos   *fakeRepoManager
	metrics *fakeRecorder
	events  *fakePublisher
	deps    Deps
}

func newEnv(t *testing.T, ps ...*models.Profile) *testEnv {
	t.Helper()
	db, mock := newSQLMockDB(t)
	env := &testEnv{
		db:      db,
		mock:    mock,
		repos:   &fakeRepoManager{p: newFakeProfiles(ps...), r: newFakeRefresh(), s: &fakeSpecsRepo{}},
		metrics: newFakeRecorder(),
		events:  &fakePublisher{},
	}
	env.deps = Deps{
		DB:              db,
		Repos:           env.repos,
		Events:          env.events,
		Metrics:         env.metrics,
		Logger:          logging.Nop(),
		TxRetryAttempts: 3,
	}
	return env
}

func (e *testEnv) expectTx(commit bool) {
	e.mock.ExpectBegin()
	if commit {
		e.mock.ExpectCommit()
	} else {
		e.mock.ExpectRollback()
	}
}

func (e *testEnv) stored(t *testing.T, id string) *models.Profile {
	t.Helper()
	p, ok := e.repos.p.rows[id]
	if !ok {
		t.Fatalf("profile %s not stored", id)
	}
	return p
}

func user(id string) *models.Profile {
	return &models.Profile{
		ID:              id,
		Email:           id + "@example.com",
		Role:            common.RoleUser,
		FirstName:       "Anya",
		LastName:        "Ivanova",
		Bio:             "old bio",
		IsEmailVerified: true,
	}
}

func admin(id string) *models.Profile {
	p := user(id)
	p.Role = common.RoleAdmin
	return p
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }
