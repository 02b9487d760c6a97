package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/report"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "輸出籌碼快報",
	Long: `從資料庫讀取已入庫的籌碼紀錄並輸出快報文字。

未指定 --date 時輸出最新一筆。

Example:
  go run ./cmd/twchip report
  go run ./cmd/twchip report --date 20260828
  go run ./cmd/twchip report --view institutional`,
	RunE: runReport,
}

var (
	reportDate string
	reportView string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportDate, "date", "", "交易日 (YYYYMMDD，預設最新一筆)")
	reportCmd.Flags().StringVar(&reportView, "view", "full", "快報類型 (full|taiex|institutional|futures|retail)")
}

func runReport(cmd *cobra.Command, args []string) error {
	view := report.View(reportView)
	if !report.ValidView(view) {
		return fmt.Errorf("invalid view %q (valid: full, taiex, institutional, futures, retail)", reportView)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var rec *market.ChipRecord
	if reportDate == "" {
		rec, err = a.repo.GetLatest(cmd.Context())
	} else {
		var date market.TradeDate
		date, err = market.ParseTradeDate(reportDate)
		if err != nil {
			return err
		}
		rec, err = a.repo.GetByDate(cmd.Context(), date)
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	fmt.Println(report.Format(rec, view))

	if len(rec.Diagnostics) > 0 {
		fmt.Println("\n⚠️ 缺漏資料:")
		for section, msg := range rec.Diagnostics {
			fmt.Printf("  - %s: %s\n", section, msg)
		}
	}
	return nil
}
