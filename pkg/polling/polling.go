package polling

import (
	"context"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/vscltools/faceitfinder/pkg/hostsite"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/resolver"
)

const (
	DefaultBatchSize  = 2
	DefaultBatchPause = time.Second
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*goquery.Document, error)
}

type Resolver interface {
	Resolve(ctx context.Context, ref player.Ref, game platforms.Game) resolver.Outcome
	ResolveProfile(ctx context.Context, ref player.Ref) resolver.Outcome
}

// PageConfig holds everything PollPage needs for a single page.
type PageConfig struct {
	PageURL  string
	Fetcher  PageFetcher
	Resolver Resolver

	// Game forces the game context. Empty means: resolve every game on
	// player pages, otherwise detect it from the page.
	Game platforms.Game

	BatchSize  int           // defaults to 2 if <= 0
	BatchPause time.Duration // defaults to 1s if 0; negative disables
	Log        Logger        // optional; nil = no logging

	// OnPlayerDone is called per-player as soon as its outcome is known
	// (from worker goroutines). Nil = no callback.
	OnPlayerDone func(out resolver.Outcome)
}

// PageResult holds the outcome of polling a single page.
type PageResult struct {
	Game     platforms.Game // empty for profile resolutions
	Players  []player.Ref
	Outcomes []resolver.Outcome // in page order
}

// PollPage fetches a host page, extracts its players and resolves them in
// paced batches. It returns once every admitted player has an outcome.
func PollPage(ctx context.Context, cfg PageConfig) (*PageResult, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}

	doc, err := cfg.Fetcher.FetchPage(ctx, cfg.PageURL)
	if err != nil {
		return nil, err
	}

	result := &PageResult{Game: cfg.Game}
	if result.Game == "" && !hostsite.IsPlayerPage(cfg.PageURL) {
		result.Game = hostsite.DetectGame(doc)
	}

	result.Players = hostsite.ExtractPlayers(doc, cfg.PageURL)
	if len(result.Players) == 0 {
		log.Infof("No player elements found on %s", cfg.PageURL)
		return result, nil
	}
	log.Debugf("Found %d players on %s", len(result.Players), cfg.PageURL)

	result.Outcomes = ResolvePlayers(ctx, result.Players, result.Game, cfg)
	return result, nil
}

// ResolvePlayers admits refs in batches of cfg.BatchSize, pausing
// cfg.BatchPause between admissions. Players within a batch run
// concurrently; later batches do not wait for earlier ones to finish. An
// empty game resolves every game per player.
//
// If ctx is cancelled, players not yet admitted get a Failure outcome.
func ResolvePlayers(ctx context.Context, refs []player.Ref, game platforms.Game, cfg PageConfig) []resolver.Outcome {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	pause := cfg.BatchPause
	if pause == 0 {
		pause = DefaultBatchPause
	}

	outcomes := make([]resolver.Outcome, len(refs))
	var wg sync.WaitGroup

	admitted := 0
	for start := 0; start < len(refs); start += size {
		if start > 0 && pause > 0 {
			if !sleep(ctx, pause) {
				log.Warnf("Stopped admitting players: %v", ctx.Err())
				break
			}
		}
		end := start + size
		if end > len(refs) {
			end = len(refs)
		}
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var out resolver.Outcome
				if game == "" {
					out = cfg.Resolver.ResolveProfile(ctx, refs[i])
				} else {
					out = cfg.Resolver.Resolve(ctx, refs[i], game)
				}
				outcomes[i] = out
				if cfg.OnPlayerDone != nil {
					cfg.OnPlayerDone(out)
				}
			}(i)
		}
		admitted = end
	}
	wg.Wait()

	for i := admitted; i < len(refs); i++ {
		outcomes[i] = resolver.Outcome{
			Ref:    refs[i],
			Game:   game,
			State:  resolver.Failure,
			Reason: "Cancelled",
			Err:    ctx.Err(),
		}
	}
	return outcomes
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
