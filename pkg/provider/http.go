package provider

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

const defaultHTTPTimeout = 10 * time.Second

// httpProvider probes a URL and returns either the response status code or
// the response body, per the requested_data parameter.
type httpProvider struct {
	url           string
	method        string
	body          string
	headers       map[string]string
	user          string
	password      string
	requestedData string
	client        *http.Client
	logger        zerolog.Logger
}

func httpSpec() Spec {
	return Spec{
		New: newHTTPProvider,
		Mandatory: []string{
			"url", // URL the request is performed against
		},
		Optional: []string{
			"method",               // HTTP method, default GET
			"body",                 // request body for POST/PUT
			"headers",              // map of header name to value
			"user",                 // basic auth user
			"password",             // basic auth password
			"requested_data",       // "status" (default) or "content"
			"timeout",              // request timeout in seconds, default 10
			"allow_redirects",      // follow redirects, default true
			"insecure_skip_verify", // skip TLS certificate verification
		},
	}
}

func newHTTPProvider(cfg map[string]any) (Provider, error) {
	p := &httpProvider{
		url:           stringOption(cfg, "url", ""),
		method:        strings.ToUpper(stringOption(cfg, "method", http.MethodGet)),
		body:          stringOption(cfg, "body", ""),
		user:          stringOption(cfg, "user", ""),
		password:      stringOption(cfg, "password", ""),
		requestedData: stringOption(cfg, "requested_data", "status"),
		logger:        log.WithProvider("http"),
	}

	switch p.method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead, http.MethodOptions:
	default:
		return nil, configErrorf("http", "method %q is not supported", p.method)
	}
	if p.requestedData != "status" && p.requestedData != "content" {
		return nil, configErrorf("http", "requested_data %q is not allowed, expected status or content", p.requestedData)
	}

	if headers, ok := cfg["headers"].(map[string]any); ok {
		p.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			if s, ok := v.(string); ok {
				p.headers[k] = s
			}
		}
	}

	client := &http.Client{
		Timeout: time.Duration(intOption(cfg, "timeout", int(defaultHTTPTimeout/time.Second))) * time.Second,
	}
	if !boolOption(cfg, "allow_redirects", true) {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	if boolOption(cfg, "insecure_skip_verify", false) {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	p.client = client

	return p, nil
}

func (p *httpProvider) Process(ctx context.Context) (any, error) {
	var body io.Reader
	if p.body != "" {
		body = strings.NewReader(p.body)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	p.logger.Debug().
		Str("url", p.url).
		Str("method", p.method).
		Int("status", resp.StatusCode).
		Msg("request performed")

	if p.requestedData == "content" {
		content, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return string(content), nil
	}
	return resp.StatusCode, nil
}
