package coil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Path string
	Body request
}

func newFakeCoil(t *testing.T, handler func(path string, body request) (int, any)) (*httptest.Server, *[]recordedCall) {
	t.Helper()

	var mu sync.Mutex
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		calls = append(calls, recordedCall{Path: r.URL.Path, Body: body})
		mu.Unlock()

		status, resp := handler(r.URL.Path, body)
		w.WriteHeader(status)
		if resp != nil {
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAdmitAllowedIssuesBothChecks(t *testing.T) {
	srv, calls := newFakeCoil(t, func(path string, body request) (int, any) {
		return http.StatusOK, map[string]any{}
	})

	client := NewClient(srv.URL, srv.Client(), 8192)
	decision := client.Admit(context.Background(), "acct-1", "gpt-4o", Limits{
		MaxRequestsPerMin: 60,
		MaxTokensPerMin:   100000,
	})

	assert.True(t, decision.Allowed())
	require.Len(t, *calls, 2)

	byPath := map[string]request{}
	for _, call := range *calls {
		byPath[call.Path] = call.Body
	}

	reqCheck, ok := byPath["/query_and_consume"]
	require.True(t, ok)
	assert.Equal(t, "acct-1", reqCheck.User)
	assert.Equal(t, "gpt-4o", reqCheck.Item)
	assert.Equal(t, "1", reqCheck.RequestAmount)
	assert.Equal(t, int64(60), reqCheck.Limit)

	tokCheck, ok := byPath["/throttled"]
	require.True(t, ok)
	assert.Equal(t, "tokensacct-1", tokCheck.User)
	assert.Equal(t, "gpt-4o", tokCheck.Item)
	assert.Equal(t, "8192", tokCheck.RequestAmount)
	assert.Equal(t, int64(100000), tokCheck.Limit)
}

func TestAdmitRequestBucketThrottled(t *testing.T) {
	srv, _ := newFakeCoil(t, func(path string, body request) (int, any) {
		if path == "/query_and_consume" {
			return http.StatusOK, map[string]any{"throttled": true, "backoff_ns": int64(2500000000)}
		}
		return http.StatusOK, map[string]any{}
	})

	client := NewClient(srv.URL, srv.Client(), 8192)
	decision := client.Admit(context.Background(), "acct-1", "gpt-4o", Limits{MaxRequestsPerMin: 1})

	assert.False(t, decision.Allowed())
	assert.True(t, decision.RequestsThrottled)
	assert.False(t, decision.TokensThrottled)
	assert.Equal(t, int64(2500000000), decision.BackoffNs)
}

func TestAdmitTokenBucketThrottled(t *testing.T) {
	srv, _ := newFakeCoil(t, func(path string, body request) (int, any) {
		if path == "/throttled" {
			return http.StatusOK, map[string]any{"throttled": true, "backoff_ns": int64(1000)}
		}
		return http.StatusOK, map[string]any{}
	})

	client := NewClient(srv.URL, srv.Client(), 4096)
	decision := client.Admit(context.Background(), "acct-2", "gpt-4o", Limits{MaxTokensPerMin: 1})

	assert.False(t, decision.Allowed())
	assert.True(t, decision.TokensThrottled)
	assert.False(t, decision.RequestsThrottled)
}

func TestAdmitFailsOpenWhenCoilUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	httpc := &http.Client{Timeout: time.Second}
	client := NewClient(srv.URL, httpc, 8192)
	decision := client.Admit(context.Background(), "acct-1", "gpt-4o", Limits{})

	assert.True(t, decision.Allowed())
}

func TestAdmitFailsOpenOnHTTPError(t *testing.T) {
	srv, _ := newFakeCoil(t, func(path string, body request) (int, any) {
		return http.StatusInternalServerError, nil
	})

	client := NewClient(srv.URL, srv.Client(), 8192)
	decision := client.Admit(context.Background(), "acct-1", "gpt-4o", Limits{})

	assert.True(t, decision.Allowed())
}

func TestConsumeSettlesTokensBucket(t *testing.T) {
	srv, calls := newFakeCoil(t, func(path string, body request) (int, any) {
		return http.StatusOK, map[string]any{"status": "success"}
	})

	client := NewClient(srv.URL, srv.Client(), 8192)
	err := client.Consume(context.Background(), "acct-1", "gpt-4o", 1234)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/consume", call.Path)
	assert.Equal(t, "tokensacct-1", call.Body.User)
	assert.Equal(t, "gpt-4o", call.Body.Item)
	assert.Equal(t, "1234", call.Body.RequestAmount)
	assert.Zero(t, call.Body.Limit)
}

func TestConsumeRejectedStatusIsError(t *testing.T) {
	srv, _ := newFakeCoil(t, func(path string, body request) (int, any) {
		return http.StatusOK, map[string]any{"status": "denied"}
	})

	client := NewClient(srv.URL, srv.Client(), 8192)
	err := client.Consume(context.Background(), "acct-1", "gpt-4o", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestConsumeTransportErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, &http.Client{Timeout: time.Second}, 8192)
	err := client.Consume(context.Background(), "acct-1", "gpt-4o", 10)
	assert.NoError(t, err)
}
