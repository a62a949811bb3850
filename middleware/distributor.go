package middleware

import (
	"net/http"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/ctxkey"
	"github.com/songquanpeng/llm-gateway/model"
)

// Distribute resolves the requested model to one backend replica and stashes
// the choice on the context for the relay controller.
func Distribute() func(c *gin.Context) {
	return func(c *gin.Context) {
		requestModel := c.GetString(ctxkey.RequestModel)
		if requestModel == "" {
			AbortWithError(c, http.StatusBadRequest, "BAD_REQUEST_MISSING_MODEL",
				errors.New("model is required"))
			return
		}

		service, err := model.PickServiceByModel(requestModel)
		if err != nil {
			if errors.Is(err, model.ErrUnsupportedModel) {
				AbortWithError(c, http.StatusBadRequest, "UNSUPPORTED_MODEL",
					errors.Errorf("model %s is not supported", requestModel))
				return
			}
			AbortWithError(c, http.StatusInternalServerError, "INTERNAL_AUTH_STORE",
				errors.Wrap(err, "resolve backend for model"))
			return
		}

		gmw.GetLogger(c).Debug("resolved backend",
			zap.String("model", requestModel),
			zap.Int("service_id", service.Id),
			zap.String("upstream_model", service.UpstreamModelName))

		c.Set(ctxkey.ServiceModel, service)
		c.Set(ctxkey.BaseURL, service.Url)
		c.Set(ctxkey.UpstreamModel, service.UpstreamModelName)
		c.Next()
	}
}
