package controller

import (
	"bytes"
	"io"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/client"
	"github.com/songquanpeng/llm-gateway/relay/adaptor/openai"
	"github.com/songquanpeng/llm-gateway/relay/meta"
	relaymodel "github.com/songquanpeng/llm-gateway/relay/model"
)

// RelayImageHelper proxies an image generation request to the resolved
// backend. The body is rewritten for the upstream model name; the response
// passes through untouched since image bodies carry no usage to account.
func RelayImageHelper(c *gin.Context) *relaymodel.ErrorWithStatusCode {
	m := meta.GetByContext(c)
	logger := gmw.GetLogger(c)

	imageRequest, err := getAndValidateTextRequest(c, m.Mode)
	if err != nil {
		logger.Warn("invalid image request", zap.Error(err))
		return openai.ErrorWrapper(err, "invalid_image_request", http.StatusBadRequest)
	}
	if imageRequest.Prompt == nil {
		return openai.ErrorWrapper(nil, "prompt_is_required", http.StatusBadRequest)
	}

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

	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		logger.Error("upstream image request failed",
			zap.String("url", m.BaseURL), zap.Error(err))
		return openai.ErrorWrapper(err, "UPSTREAM_TRANSPORT", http.StatusBadGateway)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return RelayErrorHandler(resp)
	}

	c.Writer.WriteHeader(resp.StatusCode)
	c.Writer.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	if _, err = io.Copy(c.Writer, resp.Body); err != nil {
		logger.Warn("copy image response", zap.Error(err))
	}
	return nil
}
