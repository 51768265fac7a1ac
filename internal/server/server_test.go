package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agroai/internal/config"
	"agroai/internal/models"
	"agroai/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type panickingAuth struct {
	service.AuthService
}

func (panickingAuth) Register(context.Context, string, string, string) (*models.PublicUser, error) {
	panic("unexpected")
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = "0"
	cfg.Server.MaxUploadMB = 1
	cfg.Server.CORSOrigins = []string{"https://app.agroai.example"}
	return cfg
}

func TestServer_HealthAndCORS(t *testing.T) {
	srv := NewServer(testConfig(), panickingAuth{}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.agroai.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.agroai.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/ai/chat", nil)
	req.Header.Set("Origin", "https://app.agroai.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RecoversPanics(t *testing.T) {
	srv := NewServer(testConfig(), panickingAuth{}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Body = http.NoBody
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	// An empty body fails binding before the service is reached.
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username":"a","email":"b","password":"c"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestNewDenylist(t *testing.T) {
	cfg := testConfig()

	cfg.Revocation.Backend = "none"
	d, cleanup, err := NewDenylist(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, d)
	cleanup()

	cfg.Revocation.Backend = "memory"
	d, _, err = NewDenylist(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &service.MemoryDenylist{}, d)

	cfg.Revocation.Backend = "etcd"
	_, _, err = NewDenylist(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider.Type = "groq"
	cfg.Provider.APIKey = "k"
	cfg.Provider.RequestsPerMinute = 30

	p, err := NewProvider(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())

	cfg.Provider.Type = "bard"
	_, err = NewProvider(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewArchive_Disabled(t *testing.T) {
	a, err := NewArchive(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, a)
}
