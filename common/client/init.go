package client

import (
	"net"
	"net/http"
	"time"

	"github.com/songquanpeng/llm-gateway/common/config"
)

var (
	// HTTPClient carries relay traffic to upstream inference services:
	// hard per-request timeout, shorter connect timeout.
	HTTPClient *http.Client

	// ImpatientHTTPClient serves short control-plane calls (coil, remote auth).
	ImpatientHTTPClient *http.Client
)

func Init() {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: time.Duration(config.RelayConnectTimeout) * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	HTTPClient = &http.Client{
		Transport: transport,
	}
	if config.RelayTimeout > 0 {
		HTTPClient.Timeout = time.Duration(config.RelayTimeout) * time.Second
	}

	ImpatientHTTPClient = &http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
	}
}
