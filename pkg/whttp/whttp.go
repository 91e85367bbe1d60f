package whttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	USER_AGENT = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	DEFAULT_TIMEOUT = 20 * time.Second
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode int
	BodyString string
}

// Options configures clients built by NewClient.
type Options struct {
	Policy  RetryPolicy
	Timeout time.Duration
	Proxy   string
	Logger  LeveledLogger // optional; nil = discard
}

var defaultClient, _ = NewClient(Options{Policy: DefaultRetryPolicy()})

// NewClient returns a retrying client whose retry decisions and backoff are
// driven by opts.Policy.
func NewClient(opts Options) (*retryablehttp.Client, error) {
	policy := opts.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	c := retryablehttp.NewClient()
	c.RetryMax = policy.MaxAttempts - 1
	c.RetryWaitMin = policy.BaseDelay
	c.RetryWaitMax = policy.Delay(policy.MaxAttempts)
	c.CheckRetry = policy.CheckRetry
	c.Backoff = policy.Backoff
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	if opts.Logger != nil {
		c.Logger = opts.Logger
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL: %s", opts.Proxy)
		}
		c.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return c, nil
}

// SendHTTPRequest performs wReq with client (the package default when nil)
// and returns the full body. Retries happen inside the client; an error here
// means the request was given up on.
func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	if client == nil {
		client = defaultClient
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept-Language", "en")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: strings.ToValidUTF8(string(bodyBytes), ""),
	}, nil
}
