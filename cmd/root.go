package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vscltools/faceitfinder/internal/config"
	"github.com/vscltools/faceitfinder/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "faceitfinder",
	Short: "FACEIT and Dotabuff ratings for VSCL players.",
	Long: `faceitfinder looks up the players of a VSCL match or profile page, follows their
Steam accounts and prints their FACEIT ELO (CS2) or Dota 2 medal next to them.

Results are cached for an hour in a local sqlite database (or redis).`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.faceitfinder.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("backend", "", "Cache backend: sqlite, redis or memory (overrides config)")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the sqlite cache (default ~/.config/faceitfinder/cache.sqlite)")

	viper.BindPFlag("proxy", rootCmd.PersistentFlags().Lookup("proxy"))
}

// initConfig reads in config file, .env and ENV variables if set.
func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".faceitfinder")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FACEITFINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.faceitfinder.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Debugf("Could not create config file: %s", err)
			}
		}
	}

	if backend, _ := rootCmd.PersistentFlags().GetString("backend"); backend != "" {
		viper.Set("cache.backend", backend)
	}
	if dbPath, _ := rootCmd.PersistentFlags().GetString("dbpath"); dbPath != "" {
		viper.Set("cache.dbpath", dbPath)
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
