package controller

import (
	"bytes"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/client"
	"github.com/songquanpeng/llm-gateway/relay/adaptor/openai"
	"github.com/songquanpeng/llm-gateway/relay/meta"
	relaymodel "github.com/songquanpeng/llm-gateway/relay/model"
	"github.com/songquanpeng/llm-gateway/relay/relaymode"
)

// RelayTextHelper is the chat/embedding pipeline: validate, admit, rewrite,
// post upstream, transform the response, then settle quota and telemetry.
func RelayTextHelper(c *gin.Context) *relaymodel.ErrorWithStatusCode {
	m := meta.GetByContext(c)
	logger := gmw.GetLogger(c)

	textRequest, err := getAndValidateTextRequest(c, m.Mode)
	if err != nil {
		logger.Warn("invalid text request", zap.Error(err))
		return openai.ErrorWrapper(err, "invalid_text_request", http.StatusBadRequest)
	}
	m.IsStream = textRequest.Stream
	m.PromptTokens = countPromptTokens(textRequest, m)

	if errResp := admitRequest(c, m); errResp != nil {
		return errResp
	}

	requestBody, err := buildUpstreamBody(c, m)
	if err != nil {
		return openai.ErrorWrapper(err, "build_upstream_request_failed", http.StatusInternalServerError)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(),
		http.MethodPost, m.BaseURL, bytes.NewReader(requestBody))
	if err != nil {
		return openai.ErrorWrapper(err, "build_upstream_request_failed", http.StatusInternalServerError)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := c.Request.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		logger.Error("upstream request failed",
			zap.String("url", m.BaseURL), zap.Error(err))
		return openai.ErrorWrapper(err, "UPSTREAM_TRANSPORT", http.StatusBadGateway)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return RelayErrorHandler(resp)
	}

	var usage *relaymodel.Usage
	var respErr *relaymodel.ErrorWithStatusCode
	if m.IsStream {
		respErr, usage, _ = openai.StreamHandler(c, resp, m)
	} else if m.Mode == relaymode.Embeddings {
		respErr, usage = openai.EmbeddingHandler(c, resp, m)
	} else {
		respErr, usage = openai.Handler(c, resp, m)
	}
	if respErr != nil {
		return respErr
	}

	postConsumeQuota(m, usage)
	return nil
}
