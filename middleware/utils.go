package middleware

import (
	"strings"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common"
	"github.com/songquanpeng/llm-gateway/common/helper"
)

type ModelRequest struct {
	Model string `json:"model" form:"model"`
}

// AbortWithError aborts the request with an error envelope. The code field
// carries the machine-readable failure class.
func AbortWithError(c *gin.Context, statusCode int, code string, err error) {
	logger := gmw.GetLogger(c)
	if statusCode >= 500 {
		logger.Error("server abort",
			zap.Int("status_code", statusCode),
			zap.String("code", code),
			zap.Error(err))
	} else {
		logger.Warn("server abort",
			zap.Int("status_code", statusCode),
			zap.String("code", code),
			zap.Error(err))
	}

	c.JSON(statusCode, gin.H{
		"error": gin.H{
			"message": helper.MessageWithRequestId(err.Error(), c.GetString(helper.RequestIdKey)),
			"type":    "llm_gateway_error",
			"code":    code,
		},
	})
	c.Abort()
}

// getRequestModel peeks the model field out of the buffered request body
// without consuming it.
func getRequestModel(c *gin.Context) (string, error) {
	var modelRequest ModelRequest
	if err := common.UnmarshalBodyReusable(c, &modelRequest); err != nil {
		return "", errors.Wrap(err, "unmarshal request body")
	}

	if modelRequest.Model == "" &&
		strings.HasSuffix(c.Request.URL.Path, "embeddings") {
		modelRequest.Model = c.Param("model")
	}
	return modelRequest.Model, nil
}
