package model

import (
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDatabase ensures a clean test database is available for testing
func setupTestDatabase(t *testing.T) {
	if DB == nil {
		InitDB()
	}
	if DB == nil {
		t.Fatal("Database connection not available for testing after InitDB")
	}

	DB.Exec("DELETE FROM services WHERE active_model LIKE 'test%'")
	DB.Exec("DELETE FROM model_limits WHERE active_model LIKE 'test%'")
	DB.Exec("DELETE FROM user_keys WHERE user_key LIKE 'test%'")
	DB.Exec("DELETE FROM user_key_models WHERE user_key LIKE 'test%'")
}

func TestPickServiceByModelSingleReplica(t *testing.T) {
	setupTestDatabase(t)

	require.NoError(t, DB.Create(&Service{
		ServiceType:       "chat",
		Status:            ServiceStatusEnabled,
		Url:               "http://u:8000/v1/chat/completions",
		UpstreamModelName: "Qwen/Qwen2.5-7B-Instruct",
		ActiveModel:       "test-qwen2.5-7b",
	}).Error)

	svc, err := PickServiceByModel("test-qwen2.5-7b")
	require.NoError(t, err)
	assert.Equal(t, "http://u:8000/v1/chat/completions", svc.Url)
	assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", svc.UpstreamModelName)
}

func TestPickServiceByModelUnknownModel(t *testing.T) {
	setupTestDatabase(t)

	_, err := PickServiceByModel("test-no-such-model")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedModel))
}

func TestPickServiceByModelSkipsDisabledReplicas(t *testing.T) {
	setupTestDatabase(t)

	require.NoError(t, DB.Create(&Service{
		Status:            ServiceStatusDisabled,
		Url:               "http://down:8000/v1/chat/completions",
		UpstreamModelName: "m",
		ActiveModel:       "test-partial",
	}).Error)
	require.NoError(t, DB.Create(&Service{
		Status:            ServiceStatusEnabled,
		Url:               "http://up:8000/v1/chat/completions",
		UpstreamModelName: "m",
		ActiveModel:       "test-partial",
	}).Error)

	for i := 0; i < 10; i++ {
		svc, err := PickServiceByModel("test-partial")
		require.NoError(t, err)
		assert.Equal(t, "http://up:8000/v1/chat/completions", svc.Url)
	}
}

func TestPickServiceByModelCoversAllReplicas(t *testing.T) {
	setupTestDatabase(t)

	urls := []string{
		"http://r1:8000/v1/chat/completions",
		"http://r2:8000/v1/chat/completions",
	}
	for _, u := range urls {
		require.NoError(t, DB.Create(&Service{
			Status:            ServiceStatusEnabled,
			Url:               u,
			UpstreamModelName: "m",
			ActiveModel:       "test-replicated",
		}).Error)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		svc, err := PickServiceByModel("test-replicated")
		require.NoError(t, err)
		seen[svc.Url] = true
	}
	for _, u := range urls {
		assert.True(t, seen[u], "replica %s never selected", u)
	}
}

func TestListActiveModels(t *testing.T) {
	setupTestDatabase(t)

	for _, m := range []string{"test-model-b", "test-model-a", "test-model-a"} {
		require.NoError(t, DB.Create(&Service{
			Status:            ServiceStatusEnabled,
			Url:               "http://u:8000",
			UpstreamModelName: m,
			ActiveModel:       m,
		}).Error)
	}

	models, err := ListActiveModels()
	require.NoError(t, err)

	got := map[string]bool{}
	for _, m := range models {
		got[m] = true
	}
	assert.True(t, got["test-model-a"])
	assert.True(t, got["test-model-b"])
}

func TestGetModelLimitMissingRowMeansUnlimited(t *testing.T) {
	setupTestDatabase(t)

	limit, err := GetModelLimit("test-unlimited")
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit.MaxRequestsPerMin)
	assert.Equal(t, int64(0), limit.MaxTokensPerMin)
}

func TestGetModelLimit(t *testing.T) {
	setupTestDatabase(t)

	require.NoError(t, DB.Create(&ModelLimit{
		ActiveModel:       "test-limited",
		MaxRequestsPerMin: 60,
		MaxTokensPerMin:   100000,
	}).Error)

	limit, err := GetModelLimit("test-limited")
	require.NoError(t, err)
	assert.Equal(t, int64(60), limit.MaxRequestsPerMin)
	assert.Equal(t, int64(100000), limit.MaxTokensPerMin)
}

func TestCredentialChecks(t *testing.T) {
	setupTestDatabase(t)

	require.NoError(t, DB.Create(&UserKey{UserKey: "test-key-a"}).Error)
	require.NoError(t, DB.Create(&UserKeyModel{UserKey: "test-key-a", ActiveModel: "test-model-x"}).Error)

	ok, err := IsUserKeyValid("test-key-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsUserKeyValid("test-key-unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsKeyModelAllowed("test-key-a", "test-model-x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsKeyModelAllowed("test-key-a", "test-model-y")
	require.NoError(t, err)
	assert.False(t, ok)
}
