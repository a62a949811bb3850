package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songquanpeng/llm-gateway/common/authcache"
	"github.com/songquanpeng/llm-gateway/common/config"
	"github.com/songquanpeng/llm-gateway/common/ctxkey"
	"github.com/songquanpeng/llm-gateway/model"
	"github.com/songquanpeng/llm-gateway/relay/apiinfo"
)

type capturedContext struct {
	AccountId string
	UserKey   string
	AppKey    string
	Model     string
	Reached   bool
}

func newAuthRouter(captured *capturedContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestId())
	r.POST("/v1/chat/completions", TokenAuth(), func(c *gin.Context) {
		captured.Reached = true
		captured.AccountId = c.GetString(ctxkey.AccountId)
		captured.UserKey = c.GetString(ctxkey.UserKey)
		captured.AppKey = c.GetString(ctxkey.AppKey)
		captured.Model = c.GetString(ctxkey.RequestModel)
		c.Status(http.StatusOK)
	})
	return r
}

func doAuthRequest(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func resetAuthConfig(t *testing.T) {
	t.Helper()
	local, remote, server := config.AuthLocalEnabled, config.AuthRemoteEnabled, config.AuthRemoteServer
	t.Cleanup(func() {
		config.AuthLocalEnabled, config.AuthRemoteEnabled, config.AuthRemoteServer = local, remote, server
	})
	config.AuthLocalEnabled = false
	config.AuthRemoteEnabled = false
	SetupAuth(authcache.New(16, time.Minute), nil)
}

func TestTokenAuthMissingKey(t *testing.T) {
	resetAuthConfig(t)
	var captured capturedContext
	w := doAuthRequest(newAuthRouter(&captured), `{"model":"gpt-4o"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTH_MISSING_KEY", errorCode(t, w))
	assert.False(t, captured.Reached)
}

func TestTokenAuthMissingModel(t *testing.T) {
	resetAuthConfig(t)
	var captured capturedContext
	w := doAuthRequest(newAuthRouter(&captured), `{"messages":[]}`, map[string]string{
		"Authorization": "Bearer sk-test",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST_MISSING_MODEL", errorCode(t, w))
}

func TestTokenAuthPassthroughWhenBothModesOff(t *testing.T) {
	resetAuthConfig(t)
	var captured capturedContext
	w := doAuthRequest(newAuthRouter(&captured), `{"model":"gpt-4o"}`, map[string]string{
		"Authorization": "Bearer sk-test",
		"appKey":        "app-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, captured.Reached)
	// With no auth backend, the raw key doubles as account id.
	assert.Equal(t, "sk-test", captured.AccountId)
	assert.Equal(t, "sk-test", captured.UserKey)
	assert.Equal(t, "app-1", captured.AppKey)
	assert.Equal(t, "gpt-4o", captured.Model)
}

func TestTokenAuthRemoteModeCachesVerdict(t *testing.T) {
	resetAuthConfig(t)

	var checkerCalls atomic.Int64
	checker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkerCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"accountId": "acct-9", "isValid": true})
	}))
	defer checker.Close()

	config.AuthRemoteEnabled = true
	SetupAuth(authcache.New(16, time.Minute), apiinfo.NewClient(checker.URL, checker.Client()))

	headers := map[string]string{"Authorization": "Bearer sk-test", "appKey": "app-1"}

	var captured capturedContext
	r := newAuthRouter(&captured)
	w := doAuthRequest(r, `{"model":"gpt-4o"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-9", captured.AccountId)
	assert.Equal(t, int64(1), checkerCalls.Load())

	// Warm cache: same triple, no second HTTP call.
	w = doAuthRequest(r, `{"model":"gpt-4o"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-9", captured.AccountId)
	assert.Equal(t, int64(1), checkerCalls.Load())

	// A different model is a different cache key, so the checker is hit again.
	w = doAuthRequest(r, `{"model":"gpt-4o-mini"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), checkerCalls.Load())
}

func TestTokenAuthRemoteReject(t *testing.T) {
	resetAuthConfig(t)

	checker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"isValid": false})
	}))
	defer checker.Close()

	config.AuthRemoteEnabled = true
	SetupAuth(authcache.New(16, time.Minute), apiinfo.NewClient(checker.URL, checker.Client()))

	var captured capturedContext
	w := doAuthRequest(newAuthRouter(&captured), `{"model":"gpt-4o"}`, map[string]string{
		"Authorization": "Bearer sk-bad",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN_REMOTE_REJECT", errorCode(t, w))
	assert.False(t, captured.Reached)
}

func TestTokenAuthLocalMode(t *testing.T) {
	resetAuthConfig(t)
	if model.DB == nil {
		model.InitDB()
	}
	require.NotNil(t, model.DB)
	model.DB.Exec("DELETE FROM user_keys WHERE user_key LIKE 'test%'")
	model.DB.Exec("DELETE FROM user_key_models WHERE user_key LIKE 'test%'")

	require.NoError(t, model.DB.Create(&model.UserKey{UserKey: "test-key-a"}).Error)
	require.NoError(t, model.DB.Create(&model.UserKeyModel{
		UserKey:     "test-key-a",
		ActiveModel: "test-model-x",
	}).Error)

	config.AuthLocalEnabled = true
	SetupAuth(authcache.New(16, time.Minute), nil)

	var captured capturedContext
	r := newAuthRouter(&captured)

	// Known pair passes; no backend registered so distribution is not part of
	// this test, the terminal handler answers directly.
	w := doAuthRequest(r, `{"model":"test-model-x"}`, map[string]string{
		"Authorization": "Bearer test-key-a",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-key-a", captured.AccountId)

	// Unknown key.
	w = doAuthRequest(r, `{"model":"test-model-x"}`, map[string]string{
		"Authorization": "Bearer test-key-unknown",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN_INVALID_KEY", errorCode(t, w))

	// Known key, unauthorized model.
	w = doAuthRequest(r, `{"model":"test-model-other"}`, map[string]string{
		"Authorization": "Bearer test-key-a",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN_KEY_MODEL_MISMATCH", errorCode(t, w))
}

func TestTokenAuthLocalThenRemoteResolvesAccountId(t *testing.T) {
	resetAuthConfig(t)
	if model.DB == nil {
		model.InitDB()
	}
	require.NotNil(t, model.DB)
	model.DB.Exec("DELETE FROM user_keys WHERE user_key LIKE 'test%'")
	model.DB.Exec("DELETE FROM user_key_models WHERE user_key LIKE 'test%'")

	require.NoError(t, model.DB.Create(&model.UserKey{UserKey: "test-key-b"}).Error)
	require.NoError(t, model.DB.Create(&model.UserKeyModel{
		UserKey:     "test-key-b",
		ActiveModel: "test-model-x",
	}).Error)

	var checkerCalls atomic.Int64
	checker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkerCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"accountId": "acct-remote", "isValid": true})
	}))
	defer checker.Close()

	config.AuthLocalEnabled = true
	config.AuthRemoteEnabled = true
	SetupAuth(authcache.New(16, time.Minute), apiinfo.NewClient(checker.URL, checker.Client()))

	headers := map[string]string{"Authorization": "Bearer test-key-b", "appKey": "app-1"}

	var captured capturedContext
	r := newAuthRouter(&captured)

	// The local pass must not satisfy the remote lookup: the checker is still
	// consulted and its account id wins over the raw key.
	w := doAuthRequest(r, `{"model":"test-model-x"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-remote", captured.AccountId)
	assert.Equal(t, "test-key-b", captured.UserKey)
	assert.Equal(t, int64(1), checkerCalls.Load())

	// Second request rides both caches; the account id is still the remote one.
	w = doAuthRequest(r, `{"model":"test-model-x"}`, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acct-remote", captured.AccountId)
	assert.Equal(t, int64(1), checkerCalls.Load())
}
