package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/dbx"
	"github.com/dmitrijs2005/userportal/internal/server/attempts"
	"github.com/dmitrijs2005/userportal/internal/server/auth"
	"github.com/dmitrijs2005/userportal/internal/server/metrics"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	usersrepo "github.com/dmitrijs2005/userportal/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// fakeUsersRepo is an in-memory identity store that enforces the same
// uniqueness rules as the database.
type fakeUsersRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]models.User

	createErr error
	updateErr error
	findErr   error
	updates   int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]models.User{}}
}

func (r *fakeUsersRepo) find(match func(models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if match(u) {
			c := u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsersRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r *fakeUsersRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *fakeUsersRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *fakeUsersRepo) List(context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.User{}
	for _, u := range r.byID {
		c := u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeUsersRepo) conflict(u *models.User) error {
	for id, other := range r.byID {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username {
			return common.ErrUsernameExists
		}
		if other.Email == u.Email {
			return common.ErrEmailExists
		}
	}
	return nil
}

func (r *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if err := r.conflict(u); err != nil {
		return nil, err
	}
	r.nextID++
	u.ID = r.nextID
	r.byID[u.ID] = *u
	return u, nil
}

func (r *fakeUsersRepo) Update(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	if _, ok := r.byID[u.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	if err := r.conflict(u); err != nil {
		return nil, err
	}
	r.updates++
	r.byID[u.ID] = *u
	return u, nil
}

func (r *fakeUsersRepo) RecordLogin(_ context.Context, id int64, at time.Time) error {
	return r.patch(id, func(u *models.User) {
		u.LastLoginDateDisplay = u.LastLoginDate
		u.LastLoginDate = &at
	})
}

func (r *fakeUsersRepo) SetLocked(_ context.Context, id int64, locked bool) error {
	return r.patch(id, func(u *models.User) { u.Locked = locked })
}

func (r *fakeUsersRepo) SetPasswordHash(_ context.Context, id int64, hash string) error {
	return r.patch(id, func(u *models.User) { u.PasswordHash = hash })
}

func (r *fakeUsersRepo) SetProfileImageURL(_ context.Context, id int64, url string) error {
	return r.patch(id, func(u *models.User) { u.ProfileImageURL = url })
}

// patch applies a column-level write to the stored row.
func (r *fakeUsersRepo) patch(id int64, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&u)
	r.byID[id] = u
	return nil
}

func (r *fakeUsersRepo) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

// stored returns the persisted copy of username, bypassing findErr.
func (r *fakeUsersRepo) stored(t *testing.T, username string) models.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			return u
		}
	}
	t.Fatalf("user %q not stored", username)
	return models.User{}
}

type fakeRepoManager struct {
	u usersrepo.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository        { return m.u }

// staleRepo answers email lookups with a fixed, outdated copy of a row.
type staleRepo struct {
	*fakeUsersRepo
	stale models.User
}

func (r staleRepo) FindByEmail(context.Context, string) (*models.User, error) {
	c := r.stale
	return &c, nil
}

// plainHasher keeps tests fast; bcrypt is covered in cryptox.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
func (plainHasher) Compare(h, p string) bool      { return h == "hashed:"+p }

// hookHasher runs onCompare before comparing, to interleave other
// operations with a login.
type hookHasher struct {
	plainHasher
	onCompare func()
}

func (h hookHasher) Compare(hash, p string) bool {
	if h.onCompare != nil {
		h.onCompare()
	}
	return h.plainHasher.Compare(hash, p)
}

type sentMail struct {
	firstName, password, email string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendNewPassword(_ context.Context, firstName, password, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{firstName, password, email})
	if m.err != nil {
		return errors.Join(common.ErrMailDelivery, m.err)
	}
	return nil
}

type fakeImages struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	saveErr error
}

func newFakeImages() *fakeImages { return &fakeImages{files: map[string][]byte{}} }

func (f *fakeImages) Save(_ context.Context, username string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.files[username] = data
	return nil
}

func (f *fakeImages) Load(_ context.Context, username, fileName string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[username]
	if !ok || fileName != username+".jpg" {
		return nil, "", common.ErrorNotFound
	}
	return b, "image/jpeg", nil
}

func (f *fakeImages) DeleteAll(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, username)
	f.deleted = append(f.deleted, username)
	return nil
}

// failingTracker reports errors from every call.
type failingTracker struct{ err error }

func (f failingTracker) RecordFailure(context.Context, string) error     { return f.err }
func (f failingTracker) Evict(context.Context, string) error             { return f.err }
func (f failingTracker) Exceeded(context.Context, string) (bool, error) { return false, f.err }
func (f failingTracker) Count(context.Context, string) (int, error)      { return 0, f.err }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc     *UserService
	repo    *fakeUsersRepo
	tracker *attempts.MemoryTracker
	mailer  *fakeMailer
	images  *fakeImages
	clock   *testClock
	metrics *metrics.Metrics
}

// txDB is a real database used only for BEGIN/COMMIT; the fake repository
// ignores the handle it is bound to.
func txDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tracker, err := attempts.NewMemoryTracker(attempts.Capacity, attempts.WithClock(clock.Now))
	require.NoError(t, err)
	authority, err := auth.NewAuthority([]byte("test-secret"), auth.WithClock(clock.Now))
	require.NoError(t, err)

	h := &harness{
		repo:    newFakeUsersRepo(),
		tracker: tracker,
		mailer:  &fakeMailer{},
		images:  newFakeImages(),
		clock:   clock,
		metrics: metrics.New(),
	}
	h.svc = NewUserService(txDB(t), &fakeRepoManager{u: h.repo}, Deps{
		Authority: authority,
		Tracker:   tracker,
		Hasher:    plainHasher{},
		Mailer:    h.mailer,
		Images:    h.images,
		Metrics:   h.metrics,
		BaseURL:   "http://portal.local/",
	})
	h.svc.now = clock.Now
	h.svc.newPassword = func() (string, error) { return "Generated", nil }
	return h
}

func (h *harness) attempts(t *testing.T, username string) int {
	t.Helper()
	n, err := h.tracker.Count(context.Background(), username)
	require.NoError(t, err)
	return n
}

// seed stores an active, unlocked user whose password is "secret".
func (h *harness) seed(t *testing.T, username, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		UserID:       username + "-uid",
		FirstName:    "First " + username,
		Username:     username,
		Email:        email,
		PasswordHash: "hashed:secret",
		Active:       true,
	}
	u.SetRole(role)
	created, err := h.repo.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}
