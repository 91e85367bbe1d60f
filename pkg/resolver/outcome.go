package resolver

import (
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
)

// State is where a resolution stands. A resolution moves from Idle through
// Loading and then CacheHit or Resolving before ending in one of the
// terminal states.
type State int

const (
	Idle State = iota
	Loading
	CacheHit
	Resolving
	Success
	PartialSuccess
	Failure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case CacheHit:
		return "cache_hit"
	case Resolving:
		return "resolving"
	case Success:
		return "success"
	case PartialSuccess:
		return "partial_success"
	case Failure:
		return "failure"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s >= Success }

// Outcome is the terminal result of one resolution.
type Outcome struct {
	Ref  player.Ref
	Game platforms.Game // empty for profile resolutions

	State    State
	CacheHit bool
	Record   *player.Record

	// Reason is the user-facing failure text.
	Reason string
	Err    error

	// Retryable failures may be offered a retry action.
	Retryable bool
}

func (o Outcome) fail(reason string, err error) Outcome {
	o.State = Failure
	o.Reason = reason
	o.Err = err
	o.Record = nil
	o.Retryable = true
	return o
}

// Rating returns the rating for game, if the outcome carries one.
func (o Outcome) Rating(game platforms.Game) (platforms.Rating, bool) {
	if o.Record == nil {
		return platforms.Rating{}, false
	}
	return o.Record.Rating(game)
}

func (o Outcome) RateLimited() bool { return platforms.IsRateLimited(o.Err) }
