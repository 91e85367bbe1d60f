// Package render turns resolution outcomes into display instructions and
// writes them out, as text or as JSON lines.
package render

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/resolver"
)

const FACEIT_PLAYERS = "https://www.faceit.com/en/players/"

// Renderer receives loading events and terminal outcomes.
type Renderer interface {
	Loading(ref player.Ref, game platforms.Game)
	Render(out resolver.Outcome)
}

// Card is one rating as shown to the user.
type Card struct {
	Label    string `json:"label"`
	Rating   string `json:"rating"`
	Unit     string `json:"unit,omitempty"`
	Nickname string `json:"nickname"`
	StatsURL string `json:"statsUrl"`
	// FallbackURL is shown next to StatsURL for when the stats site is down.
	FallbackURL string `json:"fallbackUrl,omitempty"`
}

type Instruction struct {
	Player     string   `json:"player"`
	ProfileURL string   `json:"profileUrl"`
	Game       string   `json:"game,omitempty"`
	State      string   `json:"state"`
	Cached     bool     `json:"cached,omitempty"`
	Cards      []Card   `json:"cards,omitempty"`
	Error      string   `json:"error,omitempty"`
	SearchURLs []string `json:"searchUrls,omitempty"`
	Retry      bool     `json:"retry,omitempty"`
}

// Build maps an outcome to what should be displayed for it.
func Build(out resolver.Outcome) Instruction {
	in := Instruction{
		Player:     out.Ref.Name,
		ProfileURL: out.Ref.ProfileURL,
		Game:       string(out.Game),
		State:      out.State.String(),
		Cached:     out.CacheHit,
	}

	if out.State == resolver.Failure {
		in.Error = out.Reason
		in.Retry = out.Retryable
		if out.Ref.Name != "" {
			games := platforms.Games
			if out.Game != "" {
				games = []platforms.Game{out.Game}
			}
			for _, g := range games {
				in.SearchURLs = append(in.SearchURLs, platforms.SearchURLs(g, out.Ref.Name)...)
			}
		}
		return in
	}

	games := platforms.Games
	if out.Game != "" {
		games = []platforms.Game{out.Game}
	}
	for _, g := range games {
		if rating, ok := out.Rating(g); ok {
			in.Cards = append(in.Cards, NewCard(rating))
		}
	}
	return in
}

func NewCard(r platforms.Rating) Card {
	if r.Service == platforms.ServiceDotabuff {
		return Card{Label: "Dotabuff", Rating: r.Rating, Nickname: r.Nickname, StatsURL: r.ProfileURL}
	}
	return Card{
		Label:       "Faceit",
		Rating:      r.Rating,
		Unit:        "ELO",
		Nickname:    r.Nickname,
		StatsURL:    r.ProfileURL,
		FallbackURL: FACEIT_PLAYERS + url.PathEscape(r.Nickname),
	}
}

func loadingText(game platforms.Game) string {
	switch game {
	case platforms.GameCS2:
		return "Loading Faceit data..."
	case platforms.GameDota2:
		return "Loading Dotabuff data..."
	}
	return "Loading profile data..."
}

// TextRenderer writes one line per event.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
	// Quiet suppresses loading lines.
	Quiet bool
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (t *TextRenderer) Loading(ref player.Ref, game platforms.Game) {
	if t.Quiet {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s: %s\n", ref.Name, loadingText(game))
}

func (t *TextRenderer) Render(out resolver.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, FormatText(Build(out)))
}

// FormatText renders in as a single line.
func FormatText(in Instruction) string {
	var b strings.Builder
	b.WriteString(in.Player)
	b.WriteString(":")

	if in.Error != "" {
		b.WriteString(" " + in.Error)
		if len(in.SearchURLs) > 0 {
			b.WriteString(" | search: " + strings.Join(in.SearchURLs, " "))
		}
		if in.Retry {
			b.WriteString(" | retry")
		}
		return b.String()
	}

	for i, c := range in.Cards {
		if i > 0 {
			b.WriteString(" |")
		}
		b.WriteString(" [" + c.Label + "] " + strings.TrimSpace(c.Rating+" "+c.Unit))
		b.WriteString(" " + c.Nickname + " " + c.StatsURL)
		if c.FallbackURL != "" {
			b.WriteString(" " + c.FallbackURL)
		}
	}
	if in.Cached {
		b.WriteString(" (cached)")
	}
	return b.String()
}

// JSONRenderer writes one JSON object per outcome. Loading events are not
// written.
type JSONRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (j *JSONRenderer) Loading(player.Ref, platforms.Game) {}

func (j *JSONRenderer) Render(out resolver.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(Build(out))
}
