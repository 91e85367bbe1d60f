package faceit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/steamid"
	"github.com/vscltools/faceitfinder/pkg/whttp"
)

const (
	FACEIT_API_BASE       = "https://www.faceit.com/api"
	FACEIT_ANALYSER_STATS = "https://faceitanalyser.com/stats/"

	DEFAULT_GAME         = "cs2"
	DEFAULT_SEARCH_LIMIT = 20
)

// Options configures a Client. Zero values fall back to the public endpoints.
type Options struct {
	BaseURL     string
	TargetGame  string
	SearchLimit int
	HTTPClient  *retryablehttp.Client
}

// Client looks up FACEIT ELO for CS2 through the site's public web API.
type Client struct {
	baseURL     string
	targetGame  string
	searchLimit int
	http        *retryablehttp.Client
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		targetGame:  opts.TargetGame,
		searchLimit: opts.SearchLimit,
		http:        opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = FACEIT_API_BASE
	}
	if c.targetGame == "" {
		c.targetGame = DEFAULT_GAME
	}
	if c.searchLimit <= 0 {
		c.searchLimit = DEFAULT_SEARCH_LIMIT
	}
	return c
}

func (c *Client) Service() platforms.Service { return platforms.ServiceFaceit }

func (c *Client) Game() platforms.Game { return platforms.GameCS2 }

func (c *Client) Domains() []string { return []string{"faceitanalyser.com", "faceit.com"} }

// FetchRating resolves steamProfileURL to a FACEIT account that plays the
// target game and returns its ELO.
func (c *Client) FetchRating(ctx context.Context, steamProfileURL string) (platforms.Rating, error) {
	steamID, ok := steamid.Extract(steamProfileURL)
	if !ok {
		return platforms.Rating{}, platforms.ErrIdentityExtraction
	}

	// The searcher accepts the Steam id through game_id.
	res, err := c.get(ctx, fmt.Sprintf("%s/searcher/v1/players?limit=%d&offset=0&game_id=%s", c.baseURL, c.searchLimit, url.QueryEscape(steamID)))
	if err != nil {
		return platforms.Rating{}, err
	}

	candidates := gjson.Get(res.BodyString, "payload").Array()
	if len(candidates) == 0 {
		return platforms.Rating{}, platforms.ErrNoProfile
	}

	nickname := SelectCandidate(candidates, c.targetGame)
	if nickname == "" {
		return platforms.Rating{}, platforms.ErrNoMatchingGame
	}

	res, err = c.get(ctx, c.baseURL+"/users/v1/nicknames/"+url.PathEscape(nickname))
	if err != nil {
		return platforms.Rating{}, err
	}

	elo := gjson.Get(res.BodyString, "payload.games."+c.targetGame+".faceit_elo")
	if !elo.Exists() {
		return platforms.Rating{}, platforms.ErrNoGameData
	}

	return platforms.Rating{
		Service:    platforms.ServiceFaceit,
		Game:       platforms.GameCS2,
		Nickname:   nickname,
		Rating:     elo.String(),
		ProfileURL: FACEIT_ANALYSER_STATS + url.PathEscape(nickname),
	}, nil
}

// SelectCandidate returns the nickname of the first candidate whose game
// list contains game, or "" when none does.
func SelectCandidate(candidates []gjson.Result, game string) string {
	for _, candidate := range candidates {
		found := false
		candidate.Get("games").ForEach(func(_, g gjson.Result) bool {
			if g.Get("name").String() == game {
				found = true
				return false
			}
			return true
		})
		if found {
			return candidate.Get("nickname").String()
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, endpoint string) (*whttp.WHTTPRes, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "GET",
		URL:     endpoint,
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "application/json"}},
	}, c.http)
	if err != nil {
		return nil, fmt.Errorf("faceit request failed: %w", err)
	}
	if whttp.IsRateLimited(res.StatusCode) {
		return nil, platforms.ErrRateLimited
	}
	return res, nil
}
