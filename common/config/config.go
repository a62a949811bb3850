package config

import (
	"strings"
	"time"

	"github.com/songquanpeng/llm-gateway/common/env"
)

var (
	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)
	// DebugSQLEnabled toggles per-query SQL logging when DEBUG_SQL=true.
	DebugSQLEnabled = env.Bool("DEBUG_SQL", false)

	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// ServerPort overrides the --port flag when running inside container or PaaS environments.
	ServerPort = strings.TrimSpace(env.String("PORT", ""))

	// SQLDSN provides the primary database DSN; empty indicates that SQLite should be used.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath specifies the SQLite database file path when SQL_DSN is absent.
	SQLitePath = env.String("SQLITE_PATH", "llm-gateway.db")
	// SQLiteBusyTimeout configures SQLite busy timeout in milliseconds to mitigate locking errors.
	SQLiteBusyTimeout = env.Int("SQLITE_BUSY_TIMEOUT", 3000)
	// SQLMaxIdleConns controls the primary database pool's idle connection count.
	SQLMaxIdleConns = env.Int("SQL_MAX_IDLE_CONNS", 100)
	// SQLMaxOpenConns controls the primary database pool's maximum open connections.
	SQLMaxOpenConns = env.Int("SQL_MAX_OPEN_CONNS", 1000)
	// SQLMaxLifetimeSeconds sets how long database connections live before being recycled (seconds).
	SQLMaxLifetimeSeconds = env.Int("SQL_MAX_LIFETIME", 300)

	// RedisConnString defines the Redis connection string; the telemetry bus is
	// disabled when it is empty.
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))
	// RedisMasterName enables Redis sentinel discovery when provided.
	RedisMasterName = strings.TrimSpace(env.String("REDIS_MASTER_NAME", ""))
	// RedisPassword supplies the Redis authentication password when required.
	RedisPassword = env.String("REDIS_PASSWORD", "")

	// AuthLocalEnabled turns on local key validation: the Bearer key and the
	// requested model must match a row in user_key_models.
	AuthLocalEnabled = env.Bool("AUTH_LOCAL_ENABLED", false)
	// AuthRemoteEnabled turns on remote key validation against AuthRemoteServer.
	AuthRemoteEnabled = env.Bool("AUTH_REMOTE_ENABLED", false)
	// AuthRemoteServer is the base URL of the remote api-info checker.
	AuthRemoteServer = strings.TrimSuffix(strings.TrimSpace(env.String("AUTH_REMOTE_SERVER", "")), "/")
	// AuthRemoteTimeout bounds each remote auth check. The checker itself gives no
	// guidance here; 5s keeps a slow checker from pinning relay traffic.
	AuthRemoteTimeout = time.Duration(env.Int("AUTH_REMOTE_TIMEOUT", 5)) * time.Second
	// AuthCacheTime is the TTL (seconds) for cached auth verdicts.
	AuthCacheTime = env.Int("AUTH_CACHE_TIME", 300)
	// AuthCacheCapacity caps the number of cached auth verdicts per namespace.
	AuthCacheCapacity = env.Int("AUTH_CACHE_CAPACITY", 1024)

	// CloudRegionId is forwarded to the remote auth checker and stamped on usage records.
	CloudRegionId = env.String("CLOUD_REGION_ID", "")
	// CloudRegionName is stamped on usage records.
	CloudRegionName = env.String("CLOUD_REGION_NAME", "")

	// CoilEnabled turns on the external token-bucket admission control.
	CoilEnabled = env.Bool("COIL_ENABLED", false)
	// CoilAddress is the base URL of the coil token-bucket service.
	CoilAddress = strings.TrimSuffix(strings.TrimSpace(env.String("COIL_IP", "")), "/")
	// CoilTimeout bounds each coil HTTP call.
	CoilTimeout = time.Duration(env.Int("COIL_TIMEOUT", 5)) * time.Second
	// CoilTokenReserve is the pessimistic per-request token window pre-reserved
	// against the tokens bucket before the true usage is known.
	CoilTokenReserve = env.Int("COIL_TOKEN_RESERVE", 8192)

	// TelemetryTopic is the message bus topic usage records are published under.
	TelemetryTopic = env.String("TELEMETRY_TOPIC", "llm-gateway-usage")
	// TelemetryFlushInterval is the cadence (seconds) of the usage queue flusher.
	TelemetryFlushInterval = env.Int("TELEMETRY_FLUSH_INTERVAL", 60)
	// TelemetryPublishTimeout bounds each bus publish; records that cannot be
	// published in time are dropped.
	TelemetryPublishTimeout = time.Duration(env.Int("TELEMETRY_PUBLISH_TIMEOUT", 5)) * time.Second

	// RelayTimeout bounds upstream HTTP requests (seconds) before aborting them.
	RelayTimeout = env.Int("RELAY_TIMEOUT", 300)
	// RelayConnectTimeout bounds the TCP/TLS handshake to upstreams (seconds).
	RelayConnectTimeout = env.Int("RELAY_CONNECT_TIMEOUT", 10)

	// MaxRequestBodyMB caps the buffered relay request body. Chat bodies are
	// small; the ceiling exists for the file-grounded variants.
	MaxRequestBodyMB = env.Int("MAX_REQUEST_BODY_MB", 100)

	// ShutdownTimeoutSec specifies the graceful shutdown timeout (seconds) for the
	// HTTP server and background workers.
	ShutdownTimeoutSec = env.Int("SHUTDOWN_TIMEOUT", 120)

	// EnablePrometheusMetrics exposes the /metrics endpoint for Prometheus scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// EnforceIncludeUsage injects stream_options.include_usage into streaming
	// upstream requests so the final usage frame is emitted.
	EnforceIncludeUsage = env.Bool("ENFORCE_INCLUDE_USAGE", true)

	// OnlyOneLogFile merges all rotated logs into a single file when true.
	OnlyOneLogFile = env.Bool("ONLY_ONE_LOG_FILE", false)

	// LogRetentionDays deletes rotated log files older than this many days.
	// Zero disables the cleaner.
	LogRetentionDays = env.Int("LOG_RETENTION_DAYS", 0)
)
