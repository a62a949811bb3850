package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common"
	"github.com/songquanpeng/llm-gateway/common/config"
	"github.com/songquanpeng/llm-gateway/common/graceful"
	"github.com/songquanpeng/llm-gateway/common/logger"
	"github.com/songquanpeng/llm-gateway/model"
	"github.com/songquanpeng/llm-gateway/monitor"
	"github.com/songquanpeng/llm-gateway/relay/adaptor/openai"
	"github.com/songquanpeng/llm-gateway/relay/coil"
	"github.com/songquanpeng/llm-gateway/relay/meta"
	relaymodel "github.com/songquanpeng/llm-gateway/relay/model"
	"github.com/songquanpeng/llm-gateway/relay/relaymode"
	"github.com/songquanpeng/llm-gateway/relay/telemetry"
)

var (
	coilClient      *coil.Client
	usageDispatcher *telemetry.Dispatcher
)

// Setup hands the controller its process-wide dependencies. Either may be nil,
// which disables quota admission or telemetry respectively.
func Setup(cc *coil.Client, dispatcher *telemetry.Dispatcher) {
	coilClient = cc
	usageDispatcher = dispatcher
}

func getAndValidateTextRequest(c *gin.Context, mode int) (*relaymodel.GeneralOpenAIRequest, error) {
	textRequest := &relaymodel.GeneralOpenAIRequest{}
	if err := common.UnmarshalBodyReusable(c, textRequest); err != nil {
		return nil, errors.Wrap(err, "unmarshal request body")
	}
	if textRequest.Model == "" {
		return nil, errors.New("model is required")
	}
	switch {
	case relaymode.IsChatLike(mode):
		if len(textRequest.Messages) == 0 {
			return nil, errors.New("messages is required")
		}
	case mode == relaymode.Embeddings:
		if textRequest.Input == nil && textRequest.Prompt == nil {
			return nil, errors.New("input is required")
		}
	}
	return textRequest, nil
}

// admitRequest asks coil whether this request fits the model's per-minute
// request and token budgets. Admission failures become a 429; coil being
// unreachable admits the request.
func admitRequest(c *gin.Context, m *meta.Meta) *relaymodel.ErrorWithStatusCode {
	if coilClient == nil || !config.CoilEnabled {
		return nil
	}

	// Zero limits are still forwarded: coil treats 0 as unlimited, and the
	// admission calls keep its buckets warm for when a ceiling appears.
	var limits coil.Limits
	limit, err := model.GetModelLimit(m.OriginModelName)
	if err != nil {
		gmw.GetLogger(c).Warn("load model limit failed, treating as unlimited",
			zap.String("model", m.OriginModelName), zap.Error(err))
	} else {
		limits = coil.Limits{
			MaxRequestsPerMin: limit.MaxRequestsPerMin,
			MaxTokensPerMin:   limit.MaxTokensPerMin,
		}
	}

	decision := coilClient.Admit(c.Request.Context(), m.AccountId, m.OriginModelName, limits)
	if decision.Allowed() {
		return nil
	}

	code := "THROTTLED_RPM"
	dimension := "rpm"
	message := "request rate limit exceeded for model " + m.OriginModelName
	if decision.TokensThrottled && !decision.RequestsThrottled {
		code = "THROTTLED_TPM"
		dimension = "tpm"
		message = "token rate limit exceeded for model " + m.OriginModelName
	}
	monitor.RecordThrottled(m.OriginModelName, dimension)
	gmw.GetLogger(c).Info("request throttled",
		zap.String("account_id", m.AccountId),
		zap.String("model", m.OriginModelName),
		zap.String("code", code),
		zap.Int64("backoff_ns", decision.BackoffNs))
	return &relaymodel.ErrorWithStatusCode{
		StatusCode: http.StatusTooManyRequests,
		Error: relaymodel.Error{
			Message: message,
			Type:    "rate_limit_error",
			Code:    code,
		},
	}
}

// buildUpstreamBody rewrites the raw request JSON for the chosen backend:
// model is replaced with the upstream's name, and streaming requests get
// stream_options injected so the upstream emits a trailing usage frame.
// Working on the raw map keeps every client-supplied field forwarded verbatim.
func buildUpstreamBody(c *gin.Context, m *meta.Meta) ([]byte, error) {
	rawBody, err := common.GetRequestBody(c)
	if err != nil {
		return nil, errors.Wrap(err, "get request body")
	}

	fields := map[string]any{}
	if err = json.Unmarshal(rawBody, &fields); err != nil {
		return nil, errors.Wrap(err, "parse request body")
	}

	fields["model"] = m.UpstreamModelName
	if m.IsStream && config.EnforceIncludeUsage {
		fields["stream_options"] = map[string]any{"include_usage": "True"}
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "marshal upstream body")
	}
	return payload, nil
}

// postConsumeQuota settles coil and enqueues the usage record once the final
// numbers are known. Runs detached so the response path never waits on it,
// but counted so shutdown can drain it.
func postConsumeQuota(m *meta.Meta, usage *relaymodel.Usage) {
	if usage == nil {
		return
	}
	endTime := time.Now()
	monitor.RecordTokens(m.OriginModelName, usage.PromptTokens, usage.CompletionTokens)

	graceful.GoCritical(context.Background(), "postConsumeQuota", func(ctx context.Context) {
		if coilClient != nil && config.CoilEnabled {
			ctx, cancel := context.WithTimeout(ctx, config.CoilTimeout)
			defer cancel()
			if err := coilClient.Consume(ctx, m.AccountId, m.OriginModelName, usage.TotalTokens); err != nil {
				logger.Logger.Warn("coil consume rejected",
					zap.String("account_id", m.AccountId), zap.Error(err))
			}
		}

		if usageDispatcher != nil {
			usageDispatcher.Enqueue(telemetry.UsageRecord{
				AccountId:        m.AccountId,
				RegionName:       config.CloudRegionName,
				RegionId:         config.CloudRegionId,
				ActiveModel:      m.OriginModelName,
				AppKey:           m.AppKey,
				StartTime:        m.StartTime.Unix(),
				EndTime:          endTime.Unix(),
				TotalTokens:      usage.TotalTokens,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
			})
		}
	})
}

func countPromptTokens(textRequest *relaymodel.GeneralOpenAIRequest, m *meta.Meta) int {
	switch {
	case relaymode.IsChatLike(m.Mode):
		return openai.CountTokenMessages(textRequest.Messages, m.UpstreamModelName)
	case m.Mode == relaymode.Embeddings:
		var total int
		for _, input := range textRequest.ParseInput() {
			total += openai.CountTokenText(input, m.UpstreamModelName)
		}
		return total
	}
	return 0
}
