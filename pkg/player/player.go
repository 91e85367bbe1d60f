package player

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/vscltools/faceitfinder/pkg/platforms"
)

// Ref is a player as found on a host page.
type Ref struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl"`
}

// Record is everything resolved for one player. It is the cache entry,
// keyed by the host display name, so two players sharing a display name
// share one entry.
type Record struct {
	Name            string                              `json:"name"`
	ProfileURL      string                              `json:"profileUrl"`
	SteamProfileURL string                              `json:"steamProfileUrl,omitempty"`
	SteamID         string                              `json:"steamId,omitempty"`
	Ratings         map[platforms.Game]platforms.Rating `json:"ratings,omitempty"`
	ResolvedAt      time.Time                           `json:"resolvedAt"`
}

// recordFields is Record without its JSON methods.
type recordFields Record

// wireRecord is the stored form of a Record. Besides the ratings map it
// carries the browser extension's per-game slots and millisecond timestamp,
// so blobs can move between the two in either direction.
type wireRecord struct {
	recordFields
	FaceitData *platforms.Rating `json:"faceitData,omitempty"`
	Dota2Data  *platforms.Rating `json:"dota2Data,omitempty"`
	Timestamp  int64             `json:"timestamp,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{recordFields: recordFields(r)}
	if rating, ok := r.Ratings[platforms.GameCS2]; ok {
		w.FaceitData = &rating
	}
	if rating, ok := r.Ratings[platforms.GameDota2]; ok {
		w.Dota2Data = &rating
	}
	if !r.ResolvedAt.IsZero() {
		w.Timestamp = r.ResolvedAt.UnixMilli()
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads both stored forms. Extension slots are only used when
// the ratings map is absent; they are filed by slot and left untagged, for
// Normalize to sort out.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Record(w.recordFields)

	if len(r.Ratings) == 0 {
		slots := []struct {
			game   platforms.Game
			rating *platforms.Rating
		}{
			{platforms.GameCS2, w.FaceitData},
			{platforms.GameDota2, w.Dota2Data},
		}
		for _, slot := range slots {
			if slot.rating == nil || slot.rating.Rating == "" {
				continue
			}
			if r.Ratings == nil {
				r.Ratings = map[platforms.Game]platforms.Rating{}
			}
			r.Ratings[slot.game] = *slot.rating
		}
	}
	if r.ResolvedAt.IsZero() && w.Timestamp > 0 {
		r.ResolvedAt = time.UnixMilli(w.Timestamp)
	}
	return nil
}

func NewRecord(ref Ref, now time.Time) Record {
	return Record{
		Name:       ref.Name,
		ProfileURL: ref.ProfileURL,
		Ratings:    map[platforms.Game]platforms.Rating{},
		ResolvedAt: now,
	}
}

func (r Record) Rating(game platforms.Game) (platforms.Rating, bool) {
	rating, ok := r.Ratings[game]
	return rating, ok
}

func (r Record) HasRatings() bool { return len(r.Ratings) > 0 }

func (r *Record) SetRating(rating platforms.Rating) {
	if r.Ratings == nil {
		r.Ratings = map[platforms.Game]platforms.Rating{}
	}
	r.Ratings[rating.Game] = rating
}

// Clone returns a copy that shares no maps with r.
func (r Record) Clone() Record {
	out := r
	if r.Ratings != nil {
		out.Ratings = make(map[platforms.Game]platforms.Rating, len(r.Ratings))
		for k, v := range r.Ratings {
			out.Ratings[k] = v
		}
	}
	return out
}

// Normalize files every rating under the game its service rates. Older
// blobs kept Dotabuff data in the CS2 slot and carry no service tag; those
// are recognised by their link. It reports whether anything moved.
func (r *Record) Normalize() bool {
	changed := false
	fixed := make(map[platforms.Game]platforms.Rating, len(r.Ratings))
	for game, rating := range r.Ratings {
		if rating.Service == "" {
			rating.Service = inferService(rating.ProfileURL)
			changed = changed || rating.Service != ""
		}
		want := rating.Service.Game()
		if want == "" {
			want = game
		}
		if rating.Game != want {
			rating.Game = want
			changed = true
		}
		if want != game {
			changed = true
			// An existing, correctly filed rating wins over a migrated one.
			if _, ok := r.Ratings[want]; ok {
				continue
			}
		}
		fixed[want] = rating
	}
	if changed {
		r.Ratings = fixed
	}
	return changed
}

func inferService(profileURL string) platforms.Service {
	switch {
	case strings.Contains(profileURL, "dotabuff.com"):
		return platforms.ServiceDotabuff
	case strings.Contains(profileURL, "faceitanalyser.com"), strings.Contains(profileURL, "faceit.com"):
		return platforms.ServiceFaceit
	}
	return ""
}
