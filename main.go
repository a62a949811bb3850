package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/songquanpeng/llm-gateway/common"
	"github.com/songquanpeng/llm-gateway/common/authcache"
	"github.com/songquanpeng/llm-gateway/common/client"
	"github.com/songquanpeng/llm-gateway/common/config"
	"github.com/songquanpeng/llm-gateway/common/graceful"
	"github.com/songquanpeng/llm-gateway/common/logger"
	"github.com/songquanpeng/llm-gateway/middleware"
	"github.com/songquanpeng/llm-gateway/model"
	"github.com/songquanpeng/llm-gateway/relay/apiinfo"
	"github.com/songquanpeng/llm-gateway/relay/coil"
	rcontroller "github.com/songquanpeng/llm-gateway/relay/controller"
	"github.com/songquanpeng/llm-gateway/relay/telemetry"
	"github.com/songquanpeng/llm-gateway/router"
)

func main() {
	ctx := context.Background()

	common.Init()
	logger.SetupLogger()
	logger.SetupProcessLogger(ctx)
	logger.StartLogRetentionCleaner(ctx, config.LogRetentionDays, logger.LogDir)
	logger.Logger.Info("llm-gateway starting")

	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	} else if !config.DebugEnabled {
		gin.SetMode(gin.ReleaseMode)
	}

	model.InitDB()
	defer func() {
		if err := model.CloseDB(); err != nil {
			logger.Logger.Error("close database", zap.Error(err))
		}
	}()

	if err := common.InitRedisClient(); err != nil {
		// Redis only carries telemetry; the relay path works without it.
		logger.Logger.Warn("redis unavailable, usage records will be dropped", zap.Error(err))
	}

	client.Init()

	authCache := authcache.New(config.AuthCacheCapacity,
		time.Duration(config.AuthCacheTime)*time.Second)
	var apiInfoClient *apiinfo.Client
	if config.AuthRemoteEnabled {
		apiInfoClient = apiinfo.NewClient(config.AuthRemoteServer, client.ImpatientHTTPClient)
	}
	middleware.SetupAuth(authCache, apiInfoClient)

	var coilClient *coil.Client
	if config.CoilEnabled {
		coilClient = coil.NewClient(config.CoilAddress, client.ImpatientHTTPClient,
			config.CoilTokenReserve)
	}

	var publisher telemetry.Publisher
	if common.IsRedisEnabled() {
		publisher = &telemetry.RedisPublisher{RDB: common.RDB}
	}
	dispatcher := telemetry.NewDispatcher(publisher, config.TelemetryTopic,
		time.Duration(config.TelemetryFlushInterval)*time.Second,
		config.TelemetryPublishTimeout)
	dispatcher.Start()

	rcontroller.Setup(coilClient, dispatcher)

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	// gzip would break SSE framing, keep it off the relay routes.
	server.Use(middleware.RequestId())

	if config.EnablePrometheusMetrics {
		server.GET("/metrics", gin.WrapH(promhttp.Handler()))
		logger.Logger.Info("prometheus metrics endpoint available at /metrics")
	}

	router.SetRouter(server)

	port := config.ServerPort
	if port == "" {
		port = strconv.Itoa(*common.Port)
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost:"+port))
		errCh <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Logger.Error("http server failed", zap.Error(err))
		os.Exit(1)
	case sig := <-quit:
		logger.Logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx,
		time.Duration(config.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	graceful.SetDraining()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http server shutdown", zap.Error(err))
	}

	// Finish detached consume/telemetry work, then flush the usage queue.
	graceful.Drain(shutdownCtx)
	dispatcher.Stop(shutdownCtx)

	logger.Logger.Info("llm-gateway stopped")
}
