// Package steamid extracts Steam identities from free text and profile links.
package steamid

import (
	"errors"
	"math/big"
	"regexp"
	"strings"
)

const (
	// Baseline is the offset between a Steam64 id and the 32-bit account id
	// used by Dota 2 stat providers.
	Baseline = "76561197960265728"

	profilesURLPrefix = "https://steamcommunity.com/profiles/"
	vanityURLPrefix   = "https://steamcommunity.com/id/"
)

var (
	profilesRegex = regexp.MustCompile(`/profiles/(\d+)`)
	vanityRegex   = regexp.MustCompile(`/id/([^/]+)`)
	digitRunRegex = regexp.MustCompile(`\b(\d{5,})\b`)

	baseline, _ = new(big.Int).SetString(Baseline, 10)

	ErrNotNumeric    = errors.New("steam id is not numeric")
	ErrBelowBaseline = errors.New("steam id is below the account baseline")
)

// Extract returns the platform identity referenced by s.
//
// Matching is ordered and stops at the first hit: a /profiles/<digits>
// segment, then a /id/<vanity> segment (returned verbatim), then the first
// standalone run of 5 or more digits. The last rule is a heuristic and will
// happily pick up unrelated long numbers in names or URLs.
func Extract(s string) (string, bool) {
	if m := profilesRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := vanityRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := digitRunRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// IsNumeric reports whether id is a canonical numeric identity rather than
// a vanity token.
func IsNumeric(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToAccountID converts a Steam64 id into the account id by subtracting
// Baseline. The arithmetic is done on big integers: Steam64 ids exceed the
// range a float64 represents exactly.
func ToAccountID(id string) (string, error) {
	if !IsNumeric(id) {
		return "", ErrNotNumeric
	}
	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return "", ErrNotNumeric
	}
	n.Sub(n, baseline)
	if n.Sign() < 0 {
		return "", ErrBelowBaseline
	}
	return n.String(), nil
}

// ProfileURL builds the canonical community link for id. Vanity tokens get
// the /id/ form.
func ProfileURL(id string) string {
	id = strings.TrimSpace(id)
	if IsNumeric(id) {
		return profilesURLPrefix + id
	}
	return vanityURLPrefix + id
}
