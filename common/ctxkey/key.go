package ctxkey

import "github.com/gin-gonic/gin"

const (
	// RequestId is a per-request unique identifier, also emitted as a response header.
	// Set in: middleware/request-id. Read in: error rendering and usage records.
	RequestId = "X-Request-Id"

	// UserKey is the raw Bearer key presented by the caller.
	// Set in: middleware/auth. Read in: quota fingerprinting and usage records.
	UserKey = "user_key"

	// AppKey is the value of the appKey header, consumed by remote auth.
	// Set in: middleware/auth. Read in: usage records.
	AppKey = "app_key"

	// AccountId is the principal bound to this request: the remote checker's
	// accountId in remote mode, the raw user key otherwise.
	// Set in: middleware/auth. Read in: coil fingerprinting and usage records.
	AccountId = "account_id"

	// RequestModel is the model name as requested by the client. Never mutated;
	// rewriting to the upstream name happens on the outbound body only.
	// Set in: middleware/auth. Read in: distributor, relay controller, transformer.
	RequestModel = "request_model"

	// ServiceModel holds the selected *model.Service row for this request.
	// Set in: middleware/distributor. Read in: relay controller.
	ServiceModel = "service_model"

	// UpstreamModel is the model identifier the chosen backend expects.
	// Set in: middleware/distributor. Read in: relay controller for body rewrite.
	UpstreamModel = "upstream_model"

	// BaseURL is the upstream endpoint resolved from the selected service row.
	// Set in: middleware/distributor. Read in: relay controller.
	BaseURL = "base_url"

	// Meta holds the aggregated per-request meta (relay/meta.GetByContext).
	Meta = "meta"

	// KeyRequestBody caches the raw request body bytes for reuse (avoid double read).
	// Set in: common.GetRequestBody. Read wherever the body must be replayed.
	KeyRequestBody = gin.BodyBytesKey
)
