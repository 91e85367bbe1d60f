package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/hostsite"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/platforms/faceit"
	"github.com/vscltools/faceitfinder/pkg/platforms/opendota"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/resolver"
)

func main() {
	// Usage: go run *.go -profile "https://vscl.ru/player/123" -name "Alice"

	profileFlag := flag.String("profile", "", "VSCL player profile URL")
	nameFlag := flag.String("name", "", "Player display name")
	steamFlag := flag.String("steam", "", "Skip the VSCL page and look up this Steam profile URL directly")

	// Parse the command-line flags
	flag.Parse()

	ctx := context.Background()

	// A client can be used on its own when the Steam profile is already known.
	if *steamFlag != "" {
		rating, err := faceit.NewClient(faceit.Options{}).FetchRating(ctx, *steamFlag)
		if err != nil {
			fmt.Println("FACEIT:", err)
			return
		}
		fmt.Println(rating.Nickname, rating.Rating, rating.ProfileURL)
		return
	}

	if *profileFlag == "" {
		fmt.Println("Profile URL is required. Please provide it using -profile flag.")
		return
	}

	// nil storage keeps the cache in memory for this run only
	r := resolver.New(resolver.Config{
		Cache: cache.New(nil),
		Host:  hostsite.NewFetcher(nil, nil),
		Clients: []platforms.RatingClient{
			faceit.NewClient(faceit.Options{}),
			opendota.NewClient(opendota.Options{}),
		},
	})

	out := r.ResolveProfile(ctx, player.Ref{Name: *nameFlag, ProfileURL: *profileFlag})
	if out.State == resolver.Failure {
		fmt.Println(out.Reason)
		return
	}
	for _, game := range platforms.Games {
		if rating, ok := out.Rating(game); ok {
			fmt.Println(game, rating.Rating, rating.ProfileURL)
		}
	}
}
