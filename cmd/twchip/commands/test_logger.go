package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weichenlin/twchip/pkg/config"
	"github.com/weichenlin/twchip/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Logger 功能測試",
	Long: `測試結構化日誌輸出。

這個命令會:
- 測試 JSON/Console 兩種輸出格式
- 測試各日誌等級
- 測試結構化欄位與錯誤紀錄

Example:
  go run ./cmd/twchip test-logger`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== twchip Logger Test ===")

	fmt.Println("1. JSON Format (Production)")
	fmt.Println("--------------------------------")
	logger.Init(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})
	log := logger.With("test")
	log.Info().Msg("Service started")
	log.Warn().Msg("High memory usage detected")
	log.Error().Msg("Failed to connect to external API")
	fmt.Println()

	fmt.Println("2. Console Format (Development)")
	fmt.Println("--------------------------------")
	logger.Init(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"})
	log = logger.With("test")
	log.Debug().Msg("Debugging application flow")
	log.Info().Msg("Request received from client")
	log.Warn().Msg("Cache miss, fetching from database")
	fmt.Println()

	fmt.Println("3. Structured Logging with Fields")
	fmt.Println("--------------------------------")
	log.Info().
		Str("date", "20260828").
		Int("sections", 9).
		Float64("foreign_net", 220.05).
		Msg("Record collected")
	fmt.Println()

	fmt.Println("4. Error Logging")
	fmt.Println("--------------------------------")
	err := errors.New("connection refused")
	log.Error().Err(err).Str("source", "taifex").Msg("Fetch failed")
	fmt.Println()

	fmt.Println("✅ All logger tests completed!")
	return nil
}
