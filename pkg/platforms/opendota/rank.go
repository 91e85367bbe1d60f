package opendota

import (
	"strings"

	"github.com/tidwall/gjson"
)

const UNCALIBRATED = "Uncalibrated"

// Medals in ascending order.
var Medals = []string{"Herald", "Guardian", "Crusader", "Archon", "Legend", "Ancient", "Divine", "Immortal"}

// RankLabel turns OpenDota's rank_tier into a medal label such as "Archon 4".
//
// The tens digit indexes Medals, clamped to the top medal. The units digit is
// the star count; when it is 0 the leaderboard position is used instead.
// A missing or zero tier is "Uncalibrated", and a non-numeric tier is shown
// as-is.
func RankLabel(tier, leaderboard gjson.Result) string {
	if !tier.Exists() || tier.Type == gjson.Null {
		return UNCALIBRATED
	}
	raw := strings.TrimSpace(tier.String())
	if raw == "" || raw == "0" || raw == "false" {
		return UNCALIBRATED
	}
	if !isDigits(raw) {
		return raw
	}
	if len(raw) == 1 {
		raw = "0" + raw
	}

	idx := int(raw[0] - '0')
	if idx >= len(Medals) {
		idx = len(Medals) - 1
	}

	sub := raw[1:2]
	if sub == "0" {
		sub = ""
		if leaderboard.Exists() && leaderboard.Type != gjson.Null {
			sub = leaderboard.String()
		}
	}

	return strings.TrimSpace(Medals[idx] + " " + sub)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
