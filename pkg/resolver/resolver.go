// Package resolver turns a host player reference into ratings: cache first,
// then host profile, Steam reference and the rating clients.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/steamid"
	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/sync/singleflight"
)

const DefaultStepDelay = 500 * time.Millisecond

const (
	ReasonNoSteamProfile = "No Steam profile found"
	ReasonHostFetch      = "Error fetching Steam profile"
	ReasonNoProfile      = "No profile found"
)

// Logger abstracts logging so callers can plug in logrus or anything with
// the same methods.
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

// HostSite finds the Steam profile referenced by a host player profile.
type HostSite interface {
	SteamProfileURL(ctx context.Context, hostProfileURL string) (string, error)
}

// Observer is told when a resolution starts. game is empty for profile
// resolutions.
type Observer interface {
	Loading(ref player.Ref, game platforms.Game)
}

// Metrics receives counters; pkg/metrics implements it.
type Metrics interface {
	CacheLookup(hit bool)
	RatingLookup(service platforms.Service, result string)
	Resolution(state string)
}

type Config struct {
	Cache   *cache.Cache
	Host    HostSite
	Clients []platforms.RatingClient

	// StepDelay is the pause between the host fetch and the rating calls.
	// Zero means DefaultStepDelay; a negative value disables it.
	StepDelay time.Duration

	Log      Logger
	Observer Observer
	Metrics  Metrics
	Now      func() time.Time
}

type Resolver struct {
	cache     *cache.Cache
	host      HostSite
	clients   map[platforms.Game]platforms.RatingClient
	stepDelay time.Duration
	log       Logger
	observer  Observer
	metrics   Metrics
	now       func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context one shared resolution runs on. It outlives any
// single caller and is cancelled once the last waiting caller gives up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func New(cfg Config) *Resolver {
	r := &Resolver{
		cache:     cfg.Cache,
		host:      cfg.Host,
		clients:   make(map[platforms.Game]platforms.RatingClient, len(cfg.Clients)),
		stepDelay: cfg.StepDelay,
		log:       cfg.Log,
		observer:  cfg.Observer,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		flights:   map[string]*flight{},
	}
	for _, c := range cfg.Clients {
		r.clients[c.Game()] = c
	}
	if r.cache == nil {
		r.cache = cache.New(nil)
	}
	if r.stepDelay == 0 {
		r.stepDelay = DefaultStepDelay
	}
	if r.log == nil {
		r.log = nopLogger{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Resolver) Cache() *cache.Cache { return r.cache }

// Resolve looks up ref's rating for a single game.
func (r *Resolver) Resolve(ctx context.Context, ref player.Ref, game platforms.Game) Outcome {
	return r.do(ctx, ref, game)
}

// ResolveProfile looks up ref's ratings for every configured game at once.
func (r *Resolver) ResolveProfile(ctx context.Context, ref player.Ref) Outcome {
	return r.do(ctx, ref, "")
}

func (r *Resolver) do(ctx context.Context, ref player.Ref, game platforms.Game) Outcome {
	if r.observer != nil {
		r.observer.Loading(ref, game)
	}

	var out Outcome
	if err := ctx.Err(); err != nil {
		out = Outcome{Ref: ref, Game: game}.fail(ReasonHostFetch, err)
	} else {
		out = r.shared(ctx, ref, game)
	}

	if out.Record != nil {
		rec := out.Record.Clone()
		out.Record = &rec
	}
	if r.metrics != nil {
		r.metrics.Resolution(out.State.String())
	}
	return out
}

// shared runs at most one resolution per display name at a time. Callers
// that arrive while one is in flight wait for it, whatever game they asked
// for, and read their answer off its result.
func (r *Resolver) shared(ctx context.Context, ref player.Ref, game platforms.Game) Outcome {
	f := r.join(ctx, ref.Name)
	ch := r.group.DoChan(ref.Name, func() (interface{}, error) {
		return r.resolve(f.ctx, ref, game), nil
	})

	select {
	case res := <-ch:
		r.leave(ref.Name, f)
		return r.adopt(res.Val.(Outcome), ref, game)
	case <-ctx.Done():
		r.leave(ref.Name, f)
		return Outcome{Ref: ref, Game: game}.fail(ReasonHostFetch, ctx.Err())
	}
}

func (r *Resolver) join(ctx context.Context, name string) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[name]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[name] = f
	}
	f.waiters++
	return f
}

func (r *Resolver) leave(name string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[name] == f {
		delete(r.flights, name)
	}
	// Nobody is left to read a run that is still going; the next caller
	// starts a fresh one.
	r.group.Forget(name)
}

// adopt fits a shared outcome to a caller that may have asked for a
// different game than the one that was resolved. It never goes back to the
// network.
func (r *Resolver) adopt(shared Outcome, ref player.Ref, game platforms.Game) Outcome {
	if shared.Game == game {
		shared.Ref = ref
		return shared
	}

	out := Outcome{Ref: ref, Game: game}
	if shared.Record != nil {
		out = r.fromRecord(out, *shared.Record)
		out.CacheHit = shared.CacheHit
		return out
	}
	if rec, ok := r.cache.Get(ref.Name); ok {
		return r.fromCache(out, rec)
	}

	switch {
	case shared.Reason == ReasonNoSteamProfile, shared.Reason == ReasonHostFetch:
		return out.fail(shared.Reason, shared.Err)
	case game == "":
		return out.fail(ReasonNoProfile, shared.Err)
	}
	return out.fail(notFoundReason(game), shared.Err)
}

func (r *Resolver) resolve(ctx context.Context, ref player.Ref, game platforms.Game) (out Outcome) {
	out = Outcome{Ref: ref, Game: game}
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("resolving %s panicked: %v", ref.Name, p)
			r.log.Errorf("%v", err)
			out = Outcome{Ref: ref, Game: game}.fail(ReasonHostFetch, err)
		}
	}()

	if rec, ok := r.cache.Get(ref.Name); ok {
		r.observeCache(true)
		r.log.Debugf("Cache hit for %s", ref.Name)
		return r.fromCache(out, rec)
	}
	r.observeCache(false)
	r.log.Debugf("Cache miss for %s, fetching", ref.Name)

	if r.host == nil {
		return out.fail(ReasonHostFetch, errors.New("no host site configured"))
	}
	steamURL, err := r.host.SteamProfileURL(ctx, ref.ProfileURL)
	if err != nil {
		r.log.Debugf("Host fetch for %s failed: %v", ref.Name, err)
		return out.fail(ReasonHostFetch, err)
	}
	if steamURL == "" {
		return out.fail(ReasonNoSteamProfile, nil)
	}
	r.log.Debugf("Found Steam URL %s for %s", steamURL, ref.Name)

	if err := r.pause(ctx); err != nil {
		return out.fail(ReasonHostFetch, err)
	}

	rec := player.NewRecord(ref, r.now())
	rec.SteamProfileURL = steamURL
	if id, ok := steamid.Extract(steamURL); ok {
		rec.SteamID = id
	}

	if game != "" {
		return r.resolveSingle(ctx, out, rec, game)
	}
	return r.resolveAll(ctx, out, rec)
}

func (r *Resolver) fromCache(out Outcome, rec player.Record) Outcome {
	out.CacheHit = true
	return r.fromRecord(out, rec)
}

// fromRecord answers out from an already resolved record.
func (r *Resolver) fromRecord(out Outcome, rec player.Record) Outcome {
	out.Record = &rec
	if out.Game == "" {
		out.State = PartialSuccess
		if len(rec.Ratings) >= len(r.clients) {
			out.State = Success
		}
		return out
	}
	if _, ok := rec.Rating(out.Game); !ok {
		return out.fail(notFoundReason(out.Game), nil)
	}
	out.State = Success
	return out
}

func (r *Resolver) resolveSingle(ctx context.Context, out Outcome, rec player.Record, game platforms.Game) Outcome {
	client, ok := r.clients[game]
	if !ok {
		return out.fail(notFoundReason(game), fmt.Errorf("no rating client for %s", game))
	}

	rating, err := r.fetch(ctx, client, rec.SteamProfileURL)
	if err != nil {
		reason := notFoundReason(game)
		if platforms.IsExpected(err) {
			reason = err.Error()
		}
		return out.fail(reason, err)
	}

	rec.SetRating(rating)
	r.store(ctx, rec)
	out.State = Success
	out.Record = &rec
	return out
}

func (r *Resolver) resolveAll(ctx context.Context, out Outcome, rec player.Record) Outcome {
	type result struct {
		rating platforms.Rating
		err    error
	}

	results := make([]result, len(platforms.Games))
	var wg sync.WaitGroup
	for i, game := range platforms.Games {
		client, ok := r.clients[game]
		if !ok {
			results[i].err = fmt.Errorf("no rating client for %s", game)
			continue
		}
		wg.Add(1)
		go func(i int, client platforms.RatingClient) {
			defer wg.Done()
			rating, err := r.fetch(ctx, client, rec.SteamProfileURL)
			results[i] = result{rating: rating, err: err}
		}(i, client)
	}
	wg.Wait()

	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		rec.SetRating(res.rating)
	}

	if !rec.HasRatings() {
		return out.fail(ReasonNoProfile, errors.Join(errs...))
	}

	r.store(ctx, rec)
	out.Record = &rec
	out.State = Success
	if len(errs) > 0 {
		out.State = PartialSuccess
	}
	return out
}

// fetch calls client, recovers its panics and drops ratings that do not
// belong to it.
func (r *Resolver) fetch(ctx context.Context, client platforms.RatingClient, steamURL string) (rating platforms.Rating, err error) {
	service := client.Service()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s client panicked: %v", service, p)
			r.log.Errorf("%v", err)
			r.observeLookup(service, "error")
		}
	}()

	rating, err = client.FetchRating(ctx, steamURL)
	switch {
	case err == nil:
	case platforms.IsRateLimited(err):
		r.log.Debugf("%s rate limited for %s", service, steamURL)
		r.observeLookup(service, "rate_limited")
		return platforms.Rating{}, err
	case platforms.IsExpected(err):
		r.log.Debugf("%s: %v (%s)", service, err, steamURL)
		r.observeLookup(service, "not_found")
		return platforms.Rating{}, err
	default:
		r.log.Errorf("%s lookup for %s failed: %v", service, steamURL, err)
		r.observeLookup(service, "error")
		return platforms.Rating{}, err
	}

	if err := Validate(client, rating); err != nil {
		r.log.Warnf("Discarding %s rating for %s: %v", service, steamURL, err)
		r.observeLookup(service, "rejected")
		return platforms.Rating{}, err
	}
	r.observeLookup(service, "ok")
	return rating, nil
}

// Validate checks that rating was produced by client: the service tag must
// match and the profile link must sit on one of the client's domains.
func Validate(client platforms.RatingClient, rating platforms.Rating) error {
	if rating.Service != client.Service() || rating.Game != client.Game() {
		return fmt.Errorf("rating tagged %s/%s, want %s/%s", rating.Service, rating.Game, client.Service(), client.Game())
	}
	if rating.Nickname == "" || rating.Rating == "" {
		return errors.New("incomplete rating")
	}

	u, err := url.Parse(rating.ProfileURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("bad profile url %q", rating.ProfileURL)
	}
	domain, err := publicsuffix.Domain(strings.ToLower(u.Hostname()))
	if err != nil {
		return fmt.Errorf("bad profile url %q: %w", rating.ProfileURL, err)
	}
	for _, d := range client.Domains() {
		if domain == d {
			return nil
		}
	}
	return fmt.Errorf("profile url %q is not on %s", rating.ProfileURL, strings.Join(client.Domains(), ", "))
}

func (r *Resolver) store(ctx context.Context, rec player.Record) {
	r.cache.Put(rec.Name, rec)
	if err := r.cache.Save(ctx); err != nil {
		r.log.Warnf("Could not persist cache: %v", err)
	}
}

func (r *Resolver) pause(ctx context.Context) error {
	if r.stepDelay <= 0 {
		return nil
	}
	t := time.NewTimer(r.stepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Resolver) observeCache(hit bool) {
	if r.metrics != nil {
		r.metrics.CacheLookup(hit)
	}
}

func (r *Resolver) observeLookup(service platforms.Service, result string) {
	if r.metrics != nil {
		r.metrics.RatingLookup(service, result)
	}
}

func notFoundReason(game platforms.Game) string {
	if game == platforms.GameDota2 {
		return "No Dotabuff profile found"
	}
	return "No Faceit profile found"
}
