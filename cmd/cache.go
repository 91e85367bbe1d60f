package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/platforms"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the resolution cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached players that have not expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		entries := a.cache.All()
		if asJSON {
			out, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PLAYER\tCS2\tDOTA 2\tAGE")
		for _, name := range names {
			rec := entries[name]
			cs, dota := "-", "-"
			if r, ok := rec.Rating(platforms.GameCS2); ok {
				cs = r.Rating + " (" + r.Nickname + ")"
			}
			if r, ok := rec.Rating(platforms.GameDota2); ok {
				dota = r.Rating
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, cs, dota, time.Since(rec.ResolvedAt).Round(time.Second))
		}
		w.Flush()

		if a.db != nil {
			if saved, ok, err := a.db.UpdatedAt(cmd.Context(), cache.StorageKey); err == nil && ok {
				fmt.Printf("\n%d players, last saved %s\n", len(names), saved.Local().Format(time.RFC1123))
			}
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every cached player",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		n := a.cache.Len()
		if err := a.cache.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Cache cleared (%d players)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheListCmd.Flags().Bool("json", false, "Print the cache as JSON")
}
