package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/otptimeouts"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// --- store fakes ---

type fakeStore struct {
	mu    sync.Mutex
	users map[string]*models.User // by email
	otps  map[string]*models.OTPTimeout

	getErr    error
	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*models.User{}, otps: map[string]*models.OTPTimeout{}}
}

type fakeUsersRepo struct{ s *fakeStore }

func (r *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createErr != nil {
		return nil, r.s.createErr
	}
	if _, ok := r.s.users[u.PrimaryEmail]; ok {
		return nil, common.ErrorConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.s.users[u.PrimaryEmail] = &cp
	return u, nil
}

func (r *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.getErr != nil {
		return nil, r.s.getErr
	}
	u, ok := r.s.users[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUsersRepo) UpdatePassword(ctx context.Context, cmd models.UpdatePassword) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	u, ok := r.s.users[cmd.Email]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = cmd.PasswordHash
	u.ModifiedAt = cmd.ModifiedAt
	return nil
}

type fakeOTPRepo struct{ s *fakeStore }

func (r *fakeOTPRepo) Upsert(ctx context.Context, otp *models.OTPTimeout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur, ok := r.s.otps[otp.UserID]; ok {
		cur.Code, cur.Verified, cur.ModifiedAt = otp.Code, false, otp.ModifiedAt
		return nil
	}
	cp := *otp
	cp.Verified = false
	r.s.otps[otp.UserID] = &cp
	return nil
}

func (r *fakeOTPRepo) Reissue(ctx context.Context, cmd models.ReissueOTP) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.otps[cmd.UserID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Code, cur.Verified, cur.ModifiedAt = cmd.Code, false, cmd.ModifiedAt
	return nil
}

func (r *fakeOTPRepo) GetByUserID(ctx context.Context, userID string) (*models.OTPTimeout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.otps[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *cur
	return &cp, nil
}

func (r *fakeOTPRepo) MarkVerified(ctx context.Context, cmd models.MarkOTPVerified) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.otps[cmd.UserID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Verified, cur.ModifiedAt = true, cmd.ModifiedAt
	return nil
}

func (r *fakeOTPRepo) ResetVerification(ctx context.Context, cmd models.ResetOTPVerification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.otps[cmd.UserID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Verified, cur.ModifiedAt = false, cmd.ModifiedAt
	return nil
}

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository         { return &fakeUsersRepo{m.s} }
func (m *fakeRepoManager) OTPTimeouts(db dbx.DBTX) otptimeouts.Repository {
	return &fakeOTPRepo{m.s}
}

// --- collaborator fakes ---

type fakeHasher struct{}

func (fakeHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
func (fakeHasher) Verify(p, h string) bool       { return h == "hashed:"+p }

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("cost too high") }
func (failingHasher) Verify(string, string) bool  { return false }

type seqCodes struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (g *seqCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	c := g.codes[0]
	g.codes = g.codes[1:]
	return c, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type fakeEvents struct {
	mu     sync.Mutex
	counts map[string]int
}

func (e *fakeEvents) Record(event, outcome string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counts == nil {
		e.counts = map[string]int{}
	}
	e.counts[event+"/"+outcome]++
}

func (e *fakeEvents) count(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[key]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- fixture ---

type fixture struct {
	svc    *AccountService
	store  *fakeStore
	codes  *seqCodes
	mail   *fakeMailer
	events *fakeEvents
	clock  *clock
	tokens *auth.TokenService
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	if mutate != nil {
		mutate(cfg)
	}

	clk := &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenService(cfg.JWTSecretKey, cfg.JWTAlgorithm, cfg.AccessTokenValidityDuration, auth.WithClock(clk.now))
	require.NoError(t, err)

	f := &fixture{
		store:  newFakeStore(),
		codes:  &seqCodes{codes: []string{"111111", "222222", "333333", "444444"}},
		mail:   &fakeMailer{},
		events: &fakeEvents{},
		clock:  clk,
		tokens: tokens,
		mock:   mock,
	}
	f.svc = NewAccountService(db, &fakeRepoManager{f.store}, cfg, fakeHasher{}, tokens, f.codes, f.mail,
		logging.NewSlogLogger(nil), WithEvents(f.events), WithNow(clk.now))
	return f
}

func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), Registration{
		FirstName: "Ada", LastName: "Lovelace", PrimaryEmail: email, Password: "secret1",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) otp(t *testing.T, userID string) *models.OTPTimeout {
	t.Helper()
	o, err := (&fakeOTPRepo{f.store}).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return o
}

func (f *fixture) setUser(email string, mutate func(u *models.User)) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	mutate(f.store.users[email])
}

func (f *fixture) deleteUser(email string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.users, email)
}
