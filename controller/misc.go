package controller

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/helper"
	"github.com/songquanpeng/llm-gateway/model"
)

func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

type openAIModel struct {
	Id      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type openAIModelList struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

// ListModels reports the active models the registry can currently serve, in
// the OpenAI list format.
func ListModels(c *gin.Context) {
	names, err := model.ListActiveModels()
	if err != nil {
		gmw.GetLogger(c).Error("list active models", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message": "failed to list models",
				"type":    "llm_gateway_error",
			},
		})
		return
	}

	list := openAIModelList{Object: "list", Data: make([]openAIModel, 0, len(names))}
	created := helper.GetTimestamp()
	for _, name := range names {
		list.Data = append(list.Data, openAIModel{
			Id:      name,
			Object:  "model",
			Created: created,
			OwnedBy: "llm-gateway",
		})
	}
	c.JSON(http.StatusOK, list)
}
