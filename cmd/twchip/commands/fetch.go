package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weichenlin/twchip/internal/market"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "手動收集籌碼資料",
	Long: `手動執行一次收集循環: 抓取、彙整、入庫。

未指定 --date 時收集最近一個交易日。指定 --push 時
收集完成後同時推播快報。

Example:
  go run ./cmd/twchip fetch
  go run ./cmd/twchip fetch --date 20260828
  go run ./cmd/twchip fetch --date 20260828 --push`,
	RunE: runFetch,
}

var (
	fetchDate    string
	fetchPush    bool
	fetchSection string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "交易日 (YYYYMMDD，預設最近交易日)")
	fetchCmd.Flags().BoolVar(&fetchPush, "push", false, "收集後推播快報")
	fetchCmd.Flags().StringVar(&fetchSection, "section", "", "只補抓單一區塊 (taiex|futures|institutional|...)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== twchip Fetch ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var date market.TradeDate
	if fetchDate == "" {
		date = a.calendar.LatestTradeDate(time.Now())
	} else {
		date, err = market.ParseTradeDate(fetchDate)
		if err != nil {
			return err
		}
		if err := a.calendar.Validate(date); err != nil {
			return err
		}
	}

	if fetchPush && a.notifier == nil {
		return fmt.Errorf("cannot push: TELEGRAM_TOKEN is not set")
	}

	if fetchSection != "" {
		return repairSection(cmd, a, date, market.Section(fetchSection))
	}

	fmt.Printf("Collecting %s...\n", date.Slash())
	if err := a.daily.RunFor(cmd.Context(), date, fetchPush); err != nil {
		return fmt.Errorf("fetch %s: %w", date, err)
	}

	fmt.Printf("✅ Record for %s persisted\n", date.Slash())
	if fetchPush {
		fmt.Println("✅ Report pushed")
	}
	return nil
}

// repairSection re-fetches one section into an already-stored record.
func repairSection(cmd *cobra.Command, a *app, date market.TradeDate, section market.Section) error {
	if !market.ValidSection(section) {
		return fmt.Errorf("unknown section %q", section)
	}

	rec, err := a.repo.GetByDate(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("no stored record for %s, run a full fetch first: %w", date, err)
	}

	fmt.Printf("Re-fetching %s for %s...\n", section, date.Slash())
	result, err := a.agg.CollectSection(cmd.Context(), date, section)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", section, err)
	}

	result(rec)
	delete(rec.Diagnostics, section)
	if len(rec.Diagnostics) == 0 {
		rec.Diagnostics = nil
	}

	if err := a.repo.Upsert(cmd.Context(), rec); err != nil {
		return fmt.Errorf("persist %s: %w", date, err)
	}

	fmt.Printf("✅ Section %s repaired for %s\n", section, date.Slash())
	return nil
}
