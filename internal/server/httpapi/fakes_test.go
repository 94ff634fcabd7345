package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	register func(services.Registration) (*models.User, error)
	login    func(email, password string) (string, error)
	initiate func(email string) (bool, error)
	resend   func(email string) (bool, error)
	verify   func(email, code string) (bool, error)
	complete func(email, password string) error
}

func (f *fakeAccounts) Register(_ context.Context, r services.Registration) (*models.User, error) {
	return f.register(r)
}

func (f *fakeAccounts) Login(_ context.Context, email, password string) (string, error) {
	return f.login(email, password)
}

func (f *fakeAccounts) RecoverInitiate(_ context.Context, email string) (bool, error) {
	return f.initiate(email)
}

func (f *fakeAccounts) RecoverResend(_ context.Context, email string) (bool, error) {
	return f.resend(email)
}

func (f *fakeAccounts) VerifyOTP(_ context.Context, email, code string) (bool, error) {
	return f.verify(email, code)
}

func (f *fakeAccounts) CompleteRecovery(_ context.Context, email, password string) error {
	return f.complete(email, password)
}

type fakeGuard struct {
	user *models.User
	err  error

	gotToken string
	gotTier  services.Tier
}

func (g *fakeGuard) Resolve(_ context.Context, token string, tier services.Tier) (*models.User, error) {
	g.gotToken, g.gotTier = token, tier
	return g.user, g.err
}

type fakeUploads struct {
	url string
	err error
	got []byte
}

func (u *fakeUploads) Upload(_ context.Context, content []byte) (string, error) {
	u.got = content
	return u.url, u.err
}

type observation struct {
	method, route string
	status        int
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (o *fakeObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{method, route, status})
}

type testServer struct {
	accounts *fakeAccounts
	guard    *fakeGuard
	uploads  *fakeUploads
	observer *fakeObserver
	handler  http.Handler
}

func newTestServer(t *testing.T, mutate func(*RouterOptions)) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	ts := &testServer{
		accounts: &fakeAccounts{},
		guard:    &fakeGuard{},
		uploads:  &fakeUploads{},
		observer: &fakeObserver{},
	}
	opts := RouterOptions{
		Accounts: ts.accounts,
		Guard:    ts.guard,
		Uploads:  ts.uploads,
		Logger:   logging.NewSlogLogger(nil),
		Metrics:  ts.observer,
	}
	if mutate != nil {
		mutate(&opts)
	}
	ts.handler = NewRouter(cfg, opts)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/commoners/upload/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detailMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	d, ok := decode(t, rec)["detail"].(map[string]any)
	require.True(t, ok, "no detail in %s", rec.Body.String())
	msg, _ := d["message"].(string)
	return msg
}
