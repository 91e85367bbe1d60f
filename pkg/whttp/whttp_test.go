package whttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{Policy: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}
}

func serve(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		status := statuses[len(statuses)-1]
		if int(n) <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSendHTTPRequest_RetriesThenSucceeds(t *testing.T) {
	srv, hits := serve(t, 500, 200)
	c, err := NewClient(testOptions(t))
	if err != nil {
		t.Fatal(err)
	}

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 || res.BodyString != `{"ok":true}` {
		t.Fatalf("unexpected response %+v", res)
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestSendHTTPRequest_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, hits := serve(t, 503)
	c, _ := NewClient(testOptions(t))

	if _, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, c); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSendHTTPRequest_RateLimitIsNotRetried(t *testing.T) {
	srv, hits := serve(t, 429)
	c, _ := NewClient(testOptions(t))

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.StatusCode)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestSendHTTPRequest_RateLimitRetriedWhenAllowed(t *testing.T) {
	srv, hits := serve(t, 429, 429, 200)
	opts := testOptions(t)
	opts.Policy.RetryRateLimited = true
	c, _ := NewClient(opts)

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Fatalf("expected 200 after retries, got %d", res.StatusCode)
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSendHTTPRequest_RedirectWithoutLocationIsAccepted(t *testing.T) {
	srv, hits := serve(t, 302)
	c, _ := NewClient(testOptions(t))

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.StatusCode)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestRetryPolicy_LinearBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	if got := p.Backoff(0, 0, 0, nil); got != 500*time.Millisecond {
		t.Fatalf("first retry waits %v", got)
	}
	if got := p.Backoff(0, 0, 1, nil); got != time.Second {
		t.Fatalf("second retry waits %v", got)
	}
}

func TestNewClient_BadProxy(t *testing.T) {
	if _, err := NewClient(Options{Proxy: "not a proxy"}); err == nil {
		t.Fatal("expected an error for a proxy without host")
	}
}
