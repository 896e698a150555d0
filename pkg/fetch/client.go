package fetch

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/config"
)

// ProxyPool hands out proxies round-robin style, advancing to the next
// entry when the caller reports a connection failure. Nil-safe: a nil
// pool means direct connections.
type ProxyPool struct {
	proxies []*url.URL
	idx     int
	mu      sync.Mutex
	log     *logrus.Logger
}

// NewProxyPool parses the configured proxy URLs. Invalid entries are
// rejected during config validation, so parse errors here are defensive.
func NewProxyPool(rawProxies []string, log *logrus.Logger) (*ProxyPool, error) {
	if len(rawProxies) == 0 {
		return nil, errors.New("proxy pool requires at least one proxy URL")
	}
	parsed := make([]*url.URL, 0, len(rawProxies))
	for _, raw := range rawProxies {
		u, err := url.ParseRequestURI(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, u)
	}
	return &ProxyPool{proxies: parsed, log: log}, nil
}

// Current returns the proxy in use.
func (p *ProxyPool) Current() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proxies[p.idx]
}

// Advance fails over to the next proxy in the pool. Called after a
// connection-level failure through the current proxy.
func (p *ProxyPool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.proxies[p.idx]
	p.idx = (p.idx + 1) % len(p.proxies)
	p.log.WithFields(logrus.Fields{"failed_proxy": prev.String(), "next_proxy": p.proxies[p.idx].String()}).Warn("Proxy failover")
}

// proxyFunc plugs the pool into http.Transport.
func (p *ProxyPool) proxyFunc(_ *http.Request) (*url.URL, error) {
	return p.Current(), nil
}

// NewClient creates the shared HTTP client. When proxies is non-nil,
// requests are routed through the pool's current proxy; otherwise system
// proxy settings apply.
func NewClient(cfg config.HTTPClientConfig, timeout time.Duration, proxies *ProxyPool, log *logrus.Logger) *http.Client {
	log.Info("Initializing HTTP client...")

	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
	}
	if proxies != nil {
		transport.Proxy = proxies.proxyFunc
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Default Go behavior is 10 redirects max
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
	log.Info("HTTP client initialized.")
	return client
}
