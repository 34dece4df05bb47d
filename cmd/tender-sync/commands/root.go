package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "tender-sync",
	Short: "Collect UK electrical tenders from public procurement sources",
	Long: `tender-sync pulls notices from UK procurement portals (OCDS APIs, bulk CSV
exports, listing pages, RSS feeds and the EU notice API), keeps the ones that
are electrical work, enriches them with region, sector, categories and
coordinates, and upserts them into the configured stores.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. main calls it once.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"path to YAML config (empty: environment and built-in sources only)")
}
