package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/player"
	"github.com/vscltools/faceitfinder/pkg/render"
	"github.com/vscltools/faceitfinder/pkg/resolver"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <vscl-profile-url>",
	Short: "Look up one player's ratings",
	Long: `Looks up the player behind a VSCL profile URL. By default every game is resolved;
use --game to ask for a single one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		gameFlag, _ := cmd.Flags().GetString("game")
		asJSON, _ := cmd.Flags().GetBool("json")

		var game platforms.Game
		if gameFlag != "" && gameFlag != "all" {
			g, err := platforms.ParseGame(gameFlag)
			if err != nil {
				return err
			}
			game = g
		}

		ref := player.Ref{Name: name, ProfileURL: args[0]}
		if ref.Name == "" {
			ref.Name = nameFromURL(args[0])
		}

		r := newRenderer(asJSON)
		a, err := newApp(cmd.Context(), r)
		if err != nil {
			return err
		}
		defer a.Close()

		var out resolver.Outcome
		if game == "" {
			out = a.resolver.ResolveProfile(cmd.Context(), ref)
		} else {
			out = a.resolver.Resolve(cmd.Context(), ref, game)
		}
		r.Render(out)
		return nil
	},
}

func newRenderer(asJSON bool) render.Renderer {
	if asJSON {
		return render.NewJSONRenderer(os.Stdout)
	}
	return render.NewTextRenderer(os.Stdout)
}

// nameFromURL is the cache key used when no display name is given.
func nameFromURL(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringP("name", "n", "", "Display name used as the cache key (default: last URL segment)")
	lookupCmd.Flags().StringP("game", "g", "all", "Game to resolve: cs2, dota2 or all")
	lookupCmd.Flags().Bool("json", false, "Print JSON instead of text")
}
