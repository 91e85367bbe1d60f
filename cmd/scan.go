package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vscltools/faceitfinder/internal/utils"
	"github.com/vscltools/faceitfinder/pkg/hostsite"
	"github.com/vscltools/faceitfinder/pkg/platforms"
	"github.com/vscltools/faceitfinder/pkg/polling"
	"github.com/vscltools/faceitfinder/pkg/resolver"
)

var scanCmd = &cobra.Command{
	Use:   "scan <vscl-page-url>",
	Short: "Resolve every player listed on a VSCL match or player page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gameFlag, _ := cmd.Flags().GetString("game")
		asJSON, _ := cmd.Flags().GetBool("json")
		pageURL := args[0]

		if !hostsite.IsMatchPage(pageURL) && !hostsite.IsPlayerPage(pageURL) {
			utils.Log.Warnf("%s does not look like a match or player page", pageURL)
		}

		var game platforms.Game
		if gameFlag != "" {
			g, err := platforms.ParseGame(gameFlag)
			if err != nil {
				return err
			}
			game = g
		}

		r := newRenderer(asJSON)
		a, err := newApp(cmd.Context(), r)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := polling.PollPage(cmd.Context(), polling.PageConfig{
			PageURL:      pageURL,
			Fetcher:      a.host,
			Resolver:     a.resolver,
			Game:         game,
			BatchSize:    a.cfg.BatchSize,
			BatchPause:   a.cfg.BatchPause,
			Log:          utils.Log,
			OnPlayerDone: func(out resolver.Outcome) { r.Render(out) },
		})
		if err != nil {
			return err
		}

		if len(result.Players) == 0 {
			return fmt.Errorf("no players found on %s", pageURL)
		}
		failed := 0
		for _, out := range result.Outcomes {
			if out.State == resolver.Failure {
				failed++
			}
		}
		utils.Log.Infof("Resolved %d/%d players", len(result.Outcomes)-failed, len(result.Outcomes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("game", "g", "", "Force the game context: cs2 or dota2 (default: detect from the page)")
	scanCmd.Flags().Bool("json", false, "Print JSON lines instead of text")
}
