package opendota

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/steamid"
	"github.com/vscltools/faceitfinder/pkg/whttp"
)

const (
	OPENDOTA_API_BASE = "https://api.opendota.com/api"
	DOTABUFF_PLAYERS  = "https://www.dotabuff.com/players/"
)

type Options struct {
	BaseURL string
	// HTTPClient should be built with a policy that retries 429; see
	// RetryPolicy.
	HTTPClient *retryablehttp.Client
}

// RetryPolicy returns base with rate-limited responses made retryable.
func RetryPolicy(base whttp.RetryPolicy) whttp.RetryPolicy {
	base.RetryRateLimited = true
	return base
}

// Client reads Dota 2 medals from OpenDota and links to Dotabuff.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = OPENDOTA_API_BASE
	}
	if c.http == nil {
		c.http, _ = whttp.NewClient(whttp.Options{Policy: RetryPolicy(whttp.DefaultRetryPolicy())})
	}
	return c
}

func (c *Client) Service() platforms.Service { return platforms.ServiceDotabuff }

func (c *Client) Game() platforms.Game { return platforms.GameDota2 }

func (c *Client) Domains() []string { return []string{"dotabuff.com"} }

func (c *Client) FetchRating(ctx context.Context, steamProfileURL string) (platforms.Rating, error) {
	steamID, ok := steamid.Extract(steamProfileURL)
	if !ok {
		return platforms.Rating{}, platforms.ErrIdentityExtraction
	}
	accountID, err := steamid.ToAccountID(steamID)
	if err != nil {
		return platforms.Rating{}, fmt.Errorf("%w: %v", platforms.ErrIdentityExtraction, err)
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     c.baseURL + "/players/" + accountID,
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	}, c.http)
	if err != nil {
		return platforms.Rating{}, fmt.Errorf("opendota request failed: %w", err)
	}
	// A 429 that outlived the retries is an ordinary failure here.
	if !whttp.IsAccepted(res.StatusCode) {
		return platforms.Rating{}, fmt.Errorf("opendota request failed: unexpected status %d", res.StatusCode)
	}

	if gjson.Get(res.BodyString, "error").Exists() {
		return platforms.Rating{}, platforms.ErrNoData
	}

	return platforms.Rating{
		Service:    platforms.ServiceDotabuff,
		Game:       platforms.GameDota2,
		Nickname:   accountID,
		Rating:     RankLabel(gjson.Get(res.BodyString, "rank_tier"), gjson.Get(res.BodyString, "leaderboard_rank")),
		ProfileURL: DOTABUFF_PLAYERS + accountID,
	}, nil
}
