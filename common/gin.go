package common

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/config"
	"github.com/songquanpeng/llm-gateway/common/ctxkey"
)

// GetRequestBody reads the request body once and caches it on the context so
// auth, admission, and the upstream dispatch can all inspect the same bytes.
// The read is bounded by MAX_REQUEST_BODY_MB.
func GetRequestBody(c *gin.Context) ([]byte, error) {
	if requestBody, ok := c.Get(ctxkey.KeyRequestBody); ok {
		return requestBody.([]byte), nil
	}

	limit := int64(config.MaxRequestBodyMB) << 20
	requestBody, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	if int64(len(requestBody)) > limit {
		return nil, errors.Errorf("request body exceeds %dMB", config.MaxRequestBodyMB)
	}
	_ = c.Request.Body.Close()
	c.Set(ctxkey.KeyRequestBody, requestBody)
	return requestBody, nil
}

// UnmarshalBodyReusable decodes the JSON body into v and restores the body so
// downstream readers can consume it again.
func UnmarshalBodyReusable(c *gin.Context, v any) error {
	requestBody, err := GetRequestBody(c)
	if err != nil {
		return err
	}

	contentType := c.Request.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/json") {
		err = json.Unmarshal(requestBody, v)
	} else {
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		err = c.ShouldBind(v)
	}
	if err != nil {
		return errors.Wrap(err, "unmarshal request body")
	}

	// Restore the body for replay by later consumers.
	c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
	return nil
}

// SetEventStreamHeaders prepares the response for SSE streaming.
func SetEventStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}
