package platforms

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Game identifies which of the supported games a lookup targets.
type Game string

const (
	GameCS2   Game = "cs2"
	GameDota2 Game = "dota2"
)

// Games lists every supported game in display order.
var Games = []Game{GameCS2, GameDota2}

func ParseGame(s string) (Game, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cs2", "cs", "counter strike 2", "counter-strike 2":
		return GameCS2, nil
	case "dota2", "dota", "dota 2":
		return GameDota2, nil
	}
	return "", errors.New("unknown game: " + s)
}

func (g Game) String() string { return string(g) }

// Service identifies the rating service that produced a Rating.
type Service string

const (
	ServiceFaceit   Service = "faceit"
	ServiceDotabuff Service = "dotabuff"
)

// Game returns the game s rates, or "" for an unknown service.
func (s Service) Game() Game {
	switch s {
	case ServiceFaceit:
		return GameCS2
	case ServiceDotabuff:
		return GameDota2
	}
	return ""
}

// Rating is one service's answer for one player in one game.
type Rating struct {
	Service    Service `json:"service"`
	Game       Game    `json:"game"`
	Nickname   string  `json:"nickname"`
	Rating     string  `json:"elo"`
	ProfileURL string  `json:"profileUrl"`
}

// RatingClient turns a Steam profile reference into a Rating.
//
// Expected "not found" outcomes are reported through the sentinel errors of
// this package; anything else is unexpected.
type RatingClient interface {
	Service() Service
	Game() Game
	// Domains lists the registrable domains a Rating.ProfileURL from this
	// client may point at.
	Domains() []string
	FetchRating(ctx context.Context, steamProfileURL string) (Rating, error)
}

// SearchURLs returns manual-search links for name, offered when a lookup
// fails.
func SearchURLs(game Game, name string) []string {
	q := url.QueryEscape(name)
	if game == GameDota2 {
		return []string{"https://www.dotabuff.com/search?q=" + q}
	}
	return []string{
		"https://faceitanalyser.com/finder?q=" + q,
		"https://www.faceit.com/en/search?q=" + q,
	}
}
