package platforms

import (
	"errors"
	"strings"
)

var (
	ErrIdentityExtraction = errors.New("could not extract Steam ID")
	ErrNoProfile          = errors.New("no Faceit profile found")
	ErrNoMatchingGame     = errors.New("no CS2 Faceit profile found")
	ErrNoGameData         = errors.New("no CS2 data found")
	ErrNoData             = errors.New("no Dota2 data found for id")

	// ErrRateLimited keeps "429" and "rate limited" in its text so the
	// condition survives being flattened to a string across the messaging
	// boundary.
	ErrRateLimited = errors.New("rate limited (429): please refresh the page and try again")
)

var expected = []error{
	ErrIdentityExtraction,
	ErrNoProfile,
	ErrNoMatchingGame,
	ErrNoGameData,
	ErrNoData,
	ErrRateLimited,
}

// IsExpected reports whether err is one of the domain "not found"
// conditions rather than a transport or programming failure.
func IsExpected(err error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsRateLimited matches ErrRateLimited, also when it only survives as text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return IsRateLimitedMessage(err.Error())
}

// IsRateLimitedMessage matches rate-limit errors by text. A bare "429" is
// not enough: it shows up in ports and ids.
func IsRateLimitedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limited") || strings.Contains(lower, "(429)") || strings.Contains(lower, "status: 429")
}
