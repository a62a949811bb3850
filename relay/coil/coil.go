// Package coil speaks the token-bucket service's tiny HTTP protocol:
// /query_and_consume and /throttled decide admission, /consume settles the
// true token count after the response is known.
package coil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"

	"github.com/songquanpeng/llm-gateway/common/logger"
)

// tokensUserPrefix keys the tokens bucket separately from the requests bucket
// on the coil side.
const tokensUserPrefix = "tokens"

type request struct {
	User          string `json:"user"`
	Item          string `json:"item"`
	RequestAmount string `json:"request_amount"`
	Limit         int64  `json:"limit,omitempty"`
}

type response struct {
	Throttled bool   `json:"throttled"`
	BackoffNs int64  `json:"backoff_ns"`
	Status    string `json:"status"`
}

// Decision is the joined admission verdict for one request.
type Decision struct {
	// RequestsThrottled is set when the per-minute request bucket is exhausted.
	RequestsThrottled bool
	// TokensThrottled is set when the per-minute token bucket is exhausted.
	TokensThrottled bool
	BackoffNs       int64
}

func (d Decision) Allowed() bool {
	return !d.RequestsThrottled && !d.TokensThrottled
}

// Limits carries the per-model ceilings forwarded to coil.
type Limits struct {
	MaxRequestsPerMin int64
	MaxTokensPerMin   int64
}

type Client struct {
	baseURL string
	httpc   *http.Client
	// tokenReserve is the pessimistic token window reserved at admission.
	tokenReserve int
}

func NewClient(baseURL string, httpc *http.Client, tokenReserve int) *Client {
	if tokenReserve <= 0 {
		tokenReserve = 8192
	}
	return &Client{baseURL: baseURL, httpc: httpc, tokenReserve: tokenReserve}
}

// Admit runs the request-count and token-count checks concurrently and joins
// them. Transport failures fail open: coil being down must not stall traffic.
func (c *Client) Admit(ctx context.Context, fingerprintUser, activeModel string, limits Limits) Decision {
	var decision Decision
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := c.post(gctx, "/query_and_consume", request{
			User:          fingerprintUser,
			Item:          activeModel,
			RequestAmount: "1",
			Limit:         limits.MaxRequestsPerMin,
		})
		if err != nil {
			logger.Logger.Warn("coil query_and_consume failed, allowing request",
				zap.String("user", fingerprintUser),
				zap.String("model", activeModel),
				zap.Error(err))
			return nil
		}
		if resp.Throttled {
			decision.RequestsThrottled = true
			decision.BackoffNs = max(decision.BackoffNs, resp.BackoffNs)
		}
		return nil
	})

	g.Go(func() error {
		resp, err := c.post(gctx, "/throttled", request{
			User:          tokensUserPrefix + fingerprintUser,
			Item:          activeModel,
			RequestAmount: strconv.Itoa(c.tokenReserve),
			Limit:         limits.MaxTokensPerMin,
		})
		if err != nil {
			logger.Logger.Warn("coil throttled check failed, allowing request",
				zap.String("user", fingerprintUser),
				zap.String("model", activeModel),
				zap.Error(err))
			return nil
		}
		if resp.Throttled {
			decision.TokensThrottled = true
			decision.BackoffNs = max(decision.BackoffNs, resp.BackoffNs)
		}
		return nil
	})

	// The goroutines never return errors; fail-open is decided per call.
	_ = g.Wait()
	return decision
}

// Consume settles the tokens bucket with the true total once usage is known.
// Transport errors are logged and swallowed: telemetry already carries the
// real numbers. A reachable coil answering anything but success is an error.
func (c *Client) Consume(ctx context.Context, fingerprintUser, activeModel string, totalTokens int) error {
	resp, err := c.post(ctx, "/consume", request{
		User:          tokensUserPrefix + fingerprintUser,
		Item:          activeModel,
		RequestAmount: strconv.Itoa(totalTokens),
	})
	if err != nil {
		logger.Logger.Warn("coil consume failed, usage recorded via telemetry only",
			zap.String("user", fingerprintUser),
			zap.String("model", activeModel),
			zap.Int("total_tokens", totalTokens),
			zap.Error(err))
		return nil
	}
	if resp.Status != "success" {
		return errors.Errorf("coil consume rejected: status %q", resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body request) (*response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal coil request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build coil request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", path)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("coil %s returned status %d", path, httpResp.StatusCode)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read coil response")
	}

	var parsed response
	if len(respBody) > 0 {
		if err = json.Unmarshal(respBody, &parsed); err != nil {
			return nil, errors.Wrapf(err, "decode coil response %q", string(respBody))
		}
	}
	return &parsed, nil
}
