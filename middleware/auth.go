package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/authcache"
	"github.com/songquanpeng/llm-gateway/common/config"
	"github.com/songquanpeng/llm-gateway/common/ctxkey"
	"github.com/songquanpeng/llm-gateway/model"
	"github.com/songquanpeng/llm-gateway/relay/apiinfo"
)

var (
	authCache     *authcache.Cache
	apiInfoClient *apiinfo.Client
)

// SetupAuth hands the auth middleware its cache and remote checker. The
// checker may be nil when remote auth is disabled.
func SetupAuth(cache *authcache.Cache, checker *apiinfo.Client) {
	authCache = cache
	apiInfoClient = checker
}

// TokenAuth authenticates relay requests. Local mode checks the key and the
// (key, model) pair against the credential tables; remote mode defers to the
// central api-info checker, short-circuited by the auth cache. With both
// modes off the request passes through and the raw key doubles as account id.
func TokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userKey := strings.TrimPrefix(c.Request.Header.Get("Authorization"), "Bearer ")
		userKey = strings.TrimSpace(userKey)
		if userKey == "" {
			AbortWithError(c, 401, "UNAUTH_MISSING_KEY", errors.New("missing Authorization header"))
			return
		}
		appKey := c.Request.Header.Get("appKey")

		modelName, err := getRequestModel(c)
		if err != nil || modelName == "" {
			if err == nil {
				err = errors.New("model is required")
			}
			AbortWithError(c, 400, "BAD_REQUEST_MISSING_MODEL", err)
			return
		}

		accountId := userKey

		if config.AuthLocalEnabled {
			if !localAuth(c, userKey, appKey, modelName) {
				return
			}
		}

		if config.AuthRemoteEnabled {
			remoteAccountId, ok := remoteAuth(c, userKey, appKey, modelName)
			if !ok {
				return
			}
			accountId = remoteAccountId
		}

		c.Set(ctxkey.UserKey, userKey)
		c.Set(ctxkey.AppKey, appKey)
		c.Set(ctxkey.AccountId, accountId)
		c.Set(ctxkey.RequestModel, modelName)
		c.Next()
	}
}

// localAuth validates against the credential tables, caching positive
// verdicts. Returns false after aborting the request.
func localAuth(c *gin.Context, userKey, appKey, modelName string) bool {
	ttl := time.Duration(config.AuthCacheTime) * time.Second

	if _, hit := authCache.Check(authcache.NamespaceManage, userKey); !hit {
		valid, err := model.IsUserKeyValid(userKey)
		if err != nil {
			AbortWithError(c, 500, "INTERNAL_AUTH_STORE", errors.Wrap(err, "query user key"))
			return false
		}
		if !valid {
			AbortWithError(c, 403, "FORBIDDEN_INVALID_KEY", errors.New("unknown key"))
			return false
		}
		authCache.Set(authcache.NamespaceManage, userKey, userKey, ttl)
	}

	// Local pair verdicts live in their own namespace; the model namespace is
	// owned by the remote checker, whose cached value is the account id.
	pairKey := authcache.ModelKey(userKey, appKey, modelName)
	if _, hit := authCache.Check(authcache.NamespaceLocal, pairKey); hit {
		return true
	}
	allowed, err := model.IsKeyModelAllowed(userKey, modelName)
	if err != nil {
		AbortWithError(c, 500, "INTERNAL_AUTH_STORE", errors.Wrap(err, "query key model pair"))
		return false
	}
	if !allowed {
		AbortWithError(c, 403, "FORBIDDEN_KEY_MODEL_MISMATCH",
			errors.Errorf("key is not allowed to use model %s", modelName))
		return false
	}
	authCache.Set(authcache.NamespaceLocal, pairKey, userKey, ttl)
	return true
}

// remoteAuth resolves the account id via the central checker, short-circuited
// by the model-namespace cache. Returns ("", false) after aborting.
func remoteAuth(c *gin.Context, userKey, appKey, modelName string) (string, bool) {
	cacheKey := authcache.ModelKey(userKey, appKey, modelName)
	if accountId, hit := authCache.Check(authcache.NamespaceModel, cacheKey); hit {
		return accountId, true
	}

	if apiInfoClient == nil {
		AbortWithError(c, 500, "INTERNAL_AUTH_STORE", errors.New("remote auth enabled but no checker configured"))
		return "", false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.AuthRemoteTimeout)
	defer cancel()

	result, err := apiInfoClient.Check(ctx, userKey, appKey, modelName, config.CloudRegionId)
	if err != nil {
		gmw.GetLogger(c).Error("remote auth check failed",
			zap.String("model", modelName), zap.Error(err))
		AbortWithError(c, 500, "INTERNAL_AUTH_STORE", errors.Wrap(err, "remote auth check"))
		return "", false
	}
	if !result.Valid || result.AccountId == "" {
		AbortWithError(c, 403, "FORBIDDEN_REMOTE_REJECT", errors.New("key rejected by remote checker"))
		return "", false
	}

	authCache.Set(authcache.NamespaceModel, cacheKey, result.AccountId,
		time.Duration(config.AuthCacheTime)*time.Second)
	return result.AccountId, true
}
