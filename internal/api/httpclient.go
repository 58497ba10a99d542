package api

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
)

func newHTTPClient(cfg *config.Config) *http.Client {
	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !cfg.Server.VerifyTLS(),
		},
	}
	client := &http.Client{Transport: tr, Timeout: timeout}
	// Preserve the User-Agent across redirects.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) == 0 {
			return nil
		}
		if ua := via[len(via)-1].Header.Get("User-Agent"); ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		return nil
	}
	return client
}

// userAgent returns the configured User-Agent, or a sensible default.
func userAgent(cfg *config.Config) string {
	if cfg != nil && cfg.Server.UserAgent != "" {
		return cfg.Server.UserAgent
	}
	return fmt.Sprintf("fedrec (%s/%s)", runtime.GOOS, runtime.GOARCH)
}
