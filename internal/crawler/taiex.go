package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// taiexAdapter scrapes the weighted index close from the TWSE
// after-trading summary, plus the market turnover from the market
// statistics page of the same report.
type taiexAdapter struct {
	c *Crawler
}

func (a *taiexAdapter) Section() market.Section { return market.SectionTaiex }

func (a *taiexAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	indexURL := fmt.Sprintf("%s/rwd/zh/afterTrading/MI_INDEX?date=%s&type=IND&response=html", a.c.twseBase, date)
	body, err := a.c.client.GetBody(ctx, indexURL)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	taiex, perr := parseTaiexIndex(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	msURL := fmt.Sprintf("%s/rwd/zh/afterTrading/MI_INDEX?date=%s&type=MS&response=html", a.c.twseBase, date)
	msBody, err := a.c.client.GetBody(ctx, msURL)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	turnover, perr := parseTaiexTurnover(msBody)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}
	taiex.TurnoverYi = turnover

	return func(rec *market.ChipRecord) { rec.Taiex = taiex }, nil
}

// parseTaiexIndex extracts the 發行量加權股價指數 row: close, sign
// marker, then the absolute point change.
func parseTaiexIndex(body []byte) (*market.Taiex, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	var taiex *market.Taiex
	doc.Find("table").First().Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return true
		}
		if strings.TrimSpace(cells.Eq(0).Text()) != "發行量加權股價指數" {
			return true
		}

		close, ok := parseFloat(cells.Eq(1).Text())
		if !ok {
			return true
		}
		change, _ := parseFloat(cells.Eq(3).Text())
		pct, _ := parseFloat(cells.Eq(4).Text())
		if strings.TrimSpace(cells.Eq(2).Text()) != "+" {
			change = -change
			pct = -pct
		}

		taiex = &market.Taiex{Close: close, Change: change, ChangePct: pct}
		return false
	})

	if taiex == nil {
		if doc.Find("table").Length() == 0 {
			return nil, newErr("", ReasonNoData, "no tables in after-trading summary", nil)
		}
		return nil, newErr("", ReasonSchemaDrift, "weighted index row not found", nil)
	}
	return taiex, nil
}

// parseTaiexTurnover extracts the 總計 turnover in 億 TWD from the
// market statistics table.
func parseTaiexTurnover(body []byte) (float64, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return 0, newErr("", ReasonParse, "invalid HTML", err)
	}

	var turnover float64
	var found bool
	doc.Find("table").First().Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		if !strings.Contains(cells.Eq(0).Text(), "總計") {
			return true
		}
		v, ok := parseFloat(cells.Eq(1).Text())
		if !ok {
			return true
		}
		turnover = v / 1e8
		found = true
		return false
	})

	if !found {
		return 0, newErr("", ReasonSchemaDrift, "turnover total row not found", nil)
	}
	return turnover, nil
}
