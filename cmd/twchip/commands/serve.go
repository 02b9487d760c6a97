package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weichenlin/twchip/internal/api"
	"github.com/weichenlin/twchip/internal/api/handlers"
	"github.com/weichenlin/twchip/internal/bot"
	"github.com/weichenlin/twchip/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "啟動服務 (API + 排程 + Telegram bot)",
	Long: `啟動常駐服務。

這個命令會:
- 啟動 HTTP API 伺服器
- 啟動每日收盤排程
- 啟動 Telegram bot 指令監聽 (已設定 token 時)

Endpoints:
  GET  /health                    - Health check
  GET  /api/report/latest?view=   - 最新快報
  GET  /api/report/{date}?view=   - 指定日期快報
  POST /api/collect               - 手動觸發收集

Example:
  go run ./cmd/twchip serve
  go run ./cmd/twchip serve --port 8086`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 伺服器埠號 (預設取 PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== twchip Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	log := logger.With("serve")
	log.Info().Str("port", a.cfg.Port).Str("env", a.cfg.Env).
		Msg("Initializing services")

	// Scheduler
	sched, err := a.newScheduler()
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// Telegram bot commands
	if a.bot != nil {
		router := bot.New(a.repo, a.cache)
		router.Attach(a.bot)
		go a.bot.Start()
		defer a.bot.Stop()
		log.Info().Msg("Telegram bot listening")
	} else {
		log.Warn().Msg("TELEGRAM_TOKEN not set, bot and push disabled")
	}

	// HTTP API
	reportHandler := handlers.NewReportHandler(a.repo, a.daily, a.calendar)
	server := api.New(a.cfg, api.NewRouter(reportHandler, logger.With("api")))

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/report/latest")
	fmt.Println("  GET  /api/report/{date}")
	fmt.Println("  POST /api/collect")
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
