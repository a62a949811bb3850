package controller

import (
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/ctxkey"
	"github.com/songquanpeng/llm-gateway/common/helper"
	"github.com/songquanpeng/llm-gateway/monitor"
	rcontroller "github.com/songquanpeng/llm-gateway/relay/controller"
	"github.com/songquanpeng/llm-gateway/relay/model"
	"github.com/songquanpeng/llm-gateway/relay/relaymode"
)

func relayHelper(c *gin.Context, mode int) *model.ErrorWithStatusCode {
	switch mode {
	case relaymode.ImagesGenerations:
		return rcontroller.RelayImageHelper(c)
	default:
		// Chat, embeddings, and the file/RAG chat variants all flow through
		// the text pipeline.
		return rcontroller.RelayTextHelper(c)
	}
}

// Relay is the terminal handler for all /v1 relay routes.
func Relay(c *gin.Context) {
	lg := gmw.GetLogger(c)
	mode := relaymode.GetByPath(c.Request.URL.Path)
	startTime := time.Now()
	requestModel := c.GetString(ctxkey.RequestModel)

	lg.Debug("incoming relay request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("relay_mode", mode),
		zap.String("model", requestModel),
		zap.Int64("content_length", c.Request.ContentLength))

	bizErr := relayHelper(c, mode)
	isStream := c.GetHeader("Accept") == "text/event-stream" ||
		c.Writer.Header().Get("Content-Type") == "text/event-stream"

	if bizErr == nil {
		monitor.RecordRelayRequest(requestModel, isStream, c.Writer.Status(), startTime)
		return
	}

	monitor.RecordRelayRequest(requestModel, isStream, bizErr.StatusCode, startTime)
	lg.Warn("relay request failed",
		zap.Int("status_code", bizErr.StatusCode),
		zap.String("model", requestModel),
		zap.Error(bizErr.RawError))

	bizErr.Error.Message = helper.MessageWithRequestId(
		bizErr.Error.Message, c.GetString(helper.RequestIdKey))
	c.JSON(bizErr.StatusCode, gin.H{"error": bizErr.Error})
}
