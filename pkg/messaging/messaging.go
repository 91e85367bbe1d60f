// Package messaging implements the request/response protocol the page side
// uses to reach rating lookups and the persisted cache.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/render"
	"github.com/vscltools/faceitfinder/pkg/resolver"
)

const (
	ActionGetFaceitProfile   = "getFaceitProfile"
	ActionGetDotabuffProfile = "getDotabuffProfile"
	ActionGetCache           = "getCache"
	ActionSaveCache          = "saveCache"
	ActionClearCache         = "clearCache"
	ActionResolvePlayer      = "resolvePlayer"
)

// Actions lists every supported action.
var Actions = []string{
	ActionGetFaceitProfile,
	ActionGetDotabuffProfile,
	ActionGetCache,
	ActionSaveCache,
	ActionClearCache,
	ActionResolvePlayer,
}

type Request struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`

	SteamURL string `json:"steamUrl,omitempty"`

	// resolvePlayer
	Name       string `json:"name,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
	Game       string `json:"game,omitempty"`

	// saveCache
	Cache json.RawMessage `json:"cache,omitempty"`
}

type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	FaceitNickname string `json:"faceitNickname,omitempty"`
	Elo            string `json:"elo,omitempty"`
	ProfileURL     string `json:"profileUrl,omitempty"`

	Cache   json.RawMessage     `json:"cache,omitempty"`
	Outcome *render.Instruction `json:"outcome,omitempty"`
}

type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

type Metrics interface {
	Message(action string, success bool, took time.Duration)
}

type Config struct {
	Resolver *resolver.Resolver
	Cache    *cache.Cache
	Clients  []platforms.RatingClient
	Log      Logger
	Metrics  Metrics
}

type Dispatcher struct {
	resolver *resolver.Resolver
	cache    *cache.Cache
	clients  map[platforms.Game]platforms.RatingClient
	log      Logger
	metrics  Metrics
}

func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		resolver: cfg.Resolver,
		cache:    cfg.Cache,
		clients:  map[platforms.Game]platforms.RatingClient{},
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}
	for _, c := range cfg.Clients {
		d.clients[c.Game()] = c
	}
	if d.cache == nil && d.resolver != nil {
		d.cache = d.resolver.Cache()
	}
	if d.log == nil {
		d.log = nopLogger{}
	}
	return d
}

// Decode parses a request and gives it an id if it has none.
func Decode(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("bad message: %w", err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req, nil
}

func Encode(res Response) ([]byte, error) {
	return json.Marshal(res)
}

// Handle runs one request. Failures are reported in the response, never as
// a Go error.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var res Response
	switch req.Action {
	case ActionGetFaceitProfile:
		res = d.lookup(ctx, platforms.GameCS2, req.SteamURL)
	case ActionGetDotabuffProfile:
		res = d.lookup(ctx, platforms.GameDota2, req.SteamURL)
	case ActionGetCache:
		res = d.getCache()
	case ActionSaveCache:
		res = d.saveCache(ctx, req.Cache)
	case ActionClearCache:
		res = d.clearCache(ctx)
	case ActionResolvePlayer:
		res = d.resolvePlayer(ctx, req)
	default:
		res = failure(fmt.Errorf("unknown action %q", req.Action))
	}
	res.ID = req.ID

	if d.metrics != nil {
		d.metrics.Message(req.Action, res.Success, time.Since(start))
	}
	return res
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func (d *Dispatcher) lookup(ctx context.Context, game platforms.Game, steamURL string) Response {
	client, ok := d.clients[game]
	if !ok {
		return failure(fmt.Errorf("no rating client for %s", game))
	}
	if steamURL == "" {
		return failure(errors.New("missing steamUrl"))
	}

	d.log.Debugf("Fetching %s rating for %s", client.Service(), steamURL)
	rating, err := client.FetchRating(ctx, steamURL)
	if err != nil {
		switch {
		case platforms.IsRateLimited(err):
			d.log.Debugf("%s rate limited", client.Service())
		case platforms.IsExpected(err):
			d.log.Debugf("%s: %v", client.Service(), err)
		default:
			d.log.Errorf("Error in %s lookup: %v", client.Service(), err)
		}
		return failure(err)
	}
	if err := resolver.Validate(client, rating); err != nil {
		d.log.Warnf("Discarding %s rating: %v", client.Service(), err)
		return failure(err)
	}

	return Response{
		Success:        true,
		FaceitNickname: rating.Nickname,
		Elo:            rating.Rating,
		ProfileURL:     rating.ProfileURL,
	}
}

func (d *Dispatcher) getCache() Response {
	if d.cache == nil {
		return Response{Success: true, Cache: json.RawMessage("{}")}
	}
	blob, err := json.Marshal(d.cache.All())
	if err != nil {
		d.log.Errorf("Error getting cache: %v", err)
		return Response{Success: false, Error: err.Error(), Cache: json.RawMessage("{}")}
	}
	return Response{Success: true, Cache: blob}
}

func (d *Dispatcher) saveCache(ctx context.Context, raw json.RawMessage) Response {
	if d.cache == nil {
		return failure(errors.New("no cache configured"))
	}
	entries := map[string]player.Record{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return failure(fmt.Errorf("bad cache: %w", err))
		}
	}
	// A non-empty mapping with nothing usable in it would wipe storage.
	usable := 0
	for _, rec := range entries {
		if rec.HasRatings() {
			usable++
		}
	}
	if usable == 0 && len(entries) > 0 {
		return failure(fmt.Errorf("bad cache: none of %d entries carry ratings", len(entries)))
	}
	d.cache.Replace(entries)
	if err := d.cache.Save(ctx); err != nil {
		d.log.Errorf("Error saving cache: %v", err)
		return failure(err)
	}
	return Response{Success: true}
}

func (d *Dispatcher) clearCache(ctx context.Context) Response {
	if d.cache == nil {
		return Response{Success: true}
	}
	if err := d.cache.Clear(ctx); err != nil {
		d.log.Errorf("Error clearing cache: %v", err)
		return failure(err)
	}
	d.log.Infof("Cache cleared")
	return Response{Success: true}
}

func (d *Dispatcher) resolvePlayer(ctx context.Context, req Request) Response {
	if d.resolver == nil {
		return failure(errors.New("no resolver configured"))
	}
	if req.Name == "" || req.ProfileURL == "" {
		return failure(errors.New("name and profileUrl are required"))
	}

	ref := player.Ref{Name: req.Name, ProfileURL: req.ProfileURL}
	var out resolver.Outcome
	if req.Game == "" {
		out = d.resolver.ResolveProfile(ctx, ref)
	} else {
		game, err := platforms.ParseGame(req.Game)
		if err != nil {
			return failure(err)
		}
		out = d.resolver.Resolve(ctx, ref, game)
	}

	in := render.Build(out)
	res := Response{
		Success: out.State != resolver.Failure,
		Error:   out.Reason,
		Outcome: &in,
	}
	if rating, ok := out.Rating(out.Game); ok {
		res.FaceitNickname = rating.Nickname
		res.Elo = rating.Rating
		res.ProfileURL = rating.ProfileURL
	}
	return res
}
