package meta

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/ctxkey"
	"github.com/songquanpeng/llm-gateway/model"
	"github.com/songquanpeng/llm-gateway/relay/relaymode"
)

// Meta aggregates the per-request state the relay pipeline threads through:
// who the caller is, which model they asked for, and which backend serves it.
type Meta struct {
	Mode int

	// AccountId is the quota/telemetry principal: the remote checker's account
	// id in remote auth mode, the raw user key otherwise.
	AccountId string
	UserKey   string
	AppKey    string

	// OriginModelName is the model name from the raw user request.
	OriginModelName string
	// UpstreamModelName is the model name the chosen backend expects.
	UpstreamModelName string

	ServiceId int
	// BaseURL is the full upstream endpoint from the service registry.
	BaseURL string

	IsStream       bool
	RequestURLPath string
	StartTime      time.Time

	// PromptTokens is the locally counted prompt size, used when the upstream
	// omits usage numbers.
	PromptTokens int
}

func GetByContext(c *gin.Context) *Meta {
	if v, ok := c.Get(ctxkey.Meta); ok {
		return v.(*Meta)
	}

	meta := Meta{
		Mode:              relaymode.GetByPath(c.Request.URL.Path),
		AccountId:         c.GetString(ctxkey.AccountId),
		UserKey:           strings.TrimPrefix(c.Request.Header.Get("Authorization"), "Bearer "),
		AppKey:            c.Request.Header.Get("appKey"),
		OriginModelName:   c.GetString(ctxkey.RequestModel),
		UpstreamModelName: c.GetString(ctxkey.UpstreamModel),
		BaseURL:           c.GetString(ctxkey.BaseURL),
		RequestURLPath:    c.Request.URL.String(),
		StartTime:         time.Now(),
	}
	if meta.AccountId == "" {
		meta.AccountId = meta.UserKey
	}
	if svc, ok := c.Get(ctxkey.ServiceModel); ok {
		if row, ok := svc.(*model.Service); ok {
			meta.ServiceId = row.Id
		}
	}
	Set2Context(c, &meta)
	return &meta
}

func Set2Context(c *gin.Context, meta *Meta) {
	c.Set(ctxkey.Meta, meta)
}
