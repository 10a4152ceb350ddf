package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type inbox struct {
	mu   sync.Mutex
	msgs []services.Message
}

func (b *inbox) Notify(ctx context.Context, msg services.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

type testAPI struct {
	t       *testing.T
	router  *gin.Engine
	metrics *metrics.Metrics
	inbox   *inbox
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                   "test-secret",
		AccessTokenValidityDuration: time.Hour,
		ResetTokenValidityDuration:  time.Minute,
		BcryptCost:                  bcrypt.MinCost,
		PublicBaseURL:               "http://localhost",
		CascadeSweepWorkers:         2,
	}
	log := logging.NewNop()
	m := metrics.New()
	u, p := users.NewMemoryRepository(), posts.NewMemoryRepository()
	box := &inbox{}
	svc := Services{
		Users:         services.NewUserService(u, box, cfg, log),
		Posts:         services.NewPostService(u, p, nil, log),
		Relationships: services.NewRelationshipService(u, services.RetryPolicy{Retries: 1, BaseDelay: time.Millisecond}, log, m),
		Engagement:    services.NewEngagementService(p, log, m),
		Cascade:       services.NewCascadeService(u, p, cfg.CascadeSweepWorkers, log, m),
	}
	srv := NewHTTPServer("127.0.0.1:0", log, svc, m, cfg.AccessTokenValidityDuration)
	return &testAPI{t: t, router: srv.Router(), metrics: m, inbox: box}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signup registers and logs in a user and returns its token and id.
func (a *testAPI) signup(name string) (token, id string) {
	a.t.Helper()
	creds := map[string]string{"name": name, "email": name + "@example.com", "password": "pw-" + name}
	rec := a.do(http.MethodPost, "/api/v1/register", "", creds)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/login", "", creds)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[userResponse](a.t, rec)
	return resp.Token, resp.User.ID
}
