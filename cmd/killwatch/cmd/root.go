package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	dbURL      string
)

var rootCmd = &cobra.Command{
	Use:   "killwatch",
	Short: "killwatch surveillance filter-matching engine",
	Long:  `killwatch matches a stream of killmail events against user-defined surveillance profiles in near-real time.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "profile database URL (sqlite://path or postgres://...)")
}

func Execute() error {
	return rootCmd.Execute()
}
