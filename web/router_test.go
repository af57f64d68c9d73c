package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiapac.com/payroll/core"
	"axiapac.com/payroll/model"
	"axiapac.com/payroll/security"
	"axiapac.com/payroll/store"
	"axiapac.com/payroll/web/events"
)

var secret = base64.StdEncoding.EncodeToString([]byte("router-test-signing-secret"))

type notifier struct {
	mu     sync.Mutex
	errors []string
}

func (n *notifier) Info(context.Context, string) error { return nil }

func (n *notifier) Error(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
	return nil
}

func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

// failingStore cannot list children.
type failingStore struct{ *store.Store }

func (failingStore) FetchChildren(context.Context, model.Key) ([]model.Node, error) {
	return nil, errors.New("connection reset")
}

func newRouter(t *testing.T, s *store.Store, wrap bool) (*gin.Engine, *events.Broker, *notifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	broker := events.NewBroker(10 * time.Millisecond)
	t.Cleanup(broker.Close)
	n := &notifier{}

	opts := RouterOptions{
		Store:     s,
		Broker:    broker,
		Notifier:  n,
		JWTSecret: mustDecode(t, secret),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if wrap {
		opts.Store = failingStore{s}
	}
	return NewRouter(opts), broker, n
}

func mustDecode(t *testing.T, s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dm, err := core.New(core.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1, core.LogLevelSilent, logger)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	require.NoError(t, dm.Migrate(context.Background()))
	require.NoError(t, dm.DB.Create(&model.Timesheet{ID: "ts1", EmployeeName: "Juan Dela Cruz"}).Error)
	return store.New(dm.DB, logger)
}

func token(t *testing.T, expiresIn int64) string {
	t.Helper()
	tok, err := security.CreateIdentityToken(&security.User{ID: 7, UserName: "payroll", Provider: "local"}, secret, expiresIn)
	require.NoError(t, err)
	return tok
}

func TestPingIsOpen(t *testing.T) {
	r, _, _ := newRouter(t, newStore(t), false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestAuthentication(t *testing.T) {
	r, _, _ := newRouter(t, newStore(t), false)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", "", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", "", http.StatusUnauthorized},
		{"expired token", "Bearer " + token(t, -60), "", http.StatusUnauthorized},
		{"bearer", "Bearer " + token(t, 60), "", http.StatusOK},
		{"cookie", "", token(t, 60), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1.0/timesheets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "axiapac.ApplicationCookie", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestMutationsReachSubscribers(t *testing.T) {
	r, broker, _ := newRouter(t, newStore(t), false)
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	req := httptest.NewRequest(http.MethodPost, "/api/v1.0/hierarchy/dtr",
		strings.NewReader(`{"timesheetId":"ts1","date":"2025-10-06","regularHours":8}`))
	req.Header.Set("Authorization", "Bearer "+token(t, 60))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got []string
	require.Eventually(t, func() bool {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		default:
		}
		return len(got) >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, got[0], "event: dtr.created")
	assert.Contains(t, got[1], "event: "+events.TotalsUpdated)
}

func TestServerErrorsAreReported(t *testing.T) {
	r, _, n := newRouter(t, newStore(t), true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/timesheets", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 60))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"internal"`)
	require.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 5*time.Millisecond)
}
