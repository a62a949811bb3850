// Package apiinfo calls the central credential service that validates
// key/app/model triples and maps them to billing accounts.
package apiinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Laisky/errors/v2"
)

type checkRequest struct {
	ApiKey        string `json:"apiKey"`
	AppKey        string `json:"appKey"`
	ModelName     string `json:"modelName"`
	CloudRegionId string `json:"cloudRegionId"`
}

type checkResponse struct {
	AccountId string `json:"accountId"`
	IsValid   bool   `json:"isValid"`
}

// Result is the verdict of one remote credential check.
type Result struct {
	AccountId string
	Valid     bool
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, httpc *http.Client) *Client {
	return &Client{baseURL: baseURL, httpc: httpc}
}

// Check validates the (apiKey, appKey, model) triple with the credential
// service. A transport or decode failure is an error, not a denial; callers
// turn it into a 5xx rather than a 403.
func (c *Client) Check(ctx context.Context, apiKey, appKey, modelName, cloudRegionId string) (*Result, error) {
	payload, err := json.Marshal(checkRequest{
		ApiKey:        apiKey,
		AppKey:        appKey,
		ModelName:     modelName,
		CloudRegionId: cloudRegionId,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal apiInfo check request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/apiInfo/check", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build apiInfo check request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call apiInfo check")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read apiInfo check response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("apiInfo check returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed checkResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "decode apiInfo check response %q", string(body))
	}
	return &Result{AccountId: parsed.AccountId, Valid: parsed.IsValid}, nil
}
