package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFlag string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twchip",
	Short: "台股盤後籌碼快報系統",
	Long: `twchip - 台股盤後籌碼資料收集與快報推播

每日收盤後抓取 TWSE/TAIFEX 籌碼資料、彙整入庫，
並透過 Telegram 推播盤後籌碼快報。

Usage:
  go run ./cmd/twchip [command]

Examples:
  go run ./cmd/twchip serve
  go run ./cmd/twchip fetch --date 20260828
  go run ./cmd/twchip report --view institutional
  go run ./cmd/twchip test-db`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
