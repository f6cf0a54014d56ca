package utils

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

type HTTPClientConfig struct {
	Timeout       time.Duration
	KATimeout     time.Duration
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string
	UserAgent     string
	Headers       map[string]string
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type DroidHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewDroidHTTPClient builds a client whose timeout bounds connection setup and
// response headers only; body streaming is never cut off by the client.
func NewDroidHTTPClient(cfg HTTPClientConfig) *DroidHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = DefaultKATimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		IdleConnTimeout:       cfg.KATimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		TLSHandshakeTimeout:   cfg.Timeout,
		MaxIdleConns:          10,
		DisableCompression:    true,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: cfg.KATimeout,
		}).DialContext,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &DroidHTTPClient{
		client: &http.Client{Transport: transport},
		config: cfg,
	}
}

func (d *DroidHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range d.config.Headers {
		req.Header.Set(k, v)
	}
	return d.client.Do(req)
}
