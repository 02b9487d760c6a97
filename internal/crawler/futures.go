package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// futuresAdapter scrapes the TX front-month close from the TAIFEX
// daily market report. Weekly contracts carry a W in the expiry column
// and are skipped; the first remaining TX row is the front month.
type futuresAdapter struct {
	c *Crawler
}

func (a *futuresAdapter) Section() market.Section { return market.SectionFutures }

func (a *futuresAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	form := url.Values{
		"queryType":    {"2"},
		"marketCode":   {"0"},
		"dateaddcnt":   {""},
		"commodity_id": {"TX"},
		"queryDate":    {date.Slash()},
	}
	resp, err := a.c.client.PostForm(ctx, a.c.taifexBase+"/cht/3/futDailyMarketReport", form)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	fut, perr := parseTXFutures(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	return func(rec *market.ChipRecord) { rec.Futures = fut }, nil
}

// parseTXFutures finds the front-month TX row. Close sits in the sixth
// cell, the signed point change in the seventh.
func parseTXFutures(body []byte) (*market.Futures, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	tables := doc.Find("table.table_f")
	if tables.Length() == 0 {
		return nil, newErr("", ReasonNoData, "daily market report table missing", nil)
	}

	var fut *market.Futures
	tables.First().Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 8 {
			return true
		}
		contract := strings.TrimSpace(cells.Eq(0).Text())
		month := strings.TrimSpace(cells.Eq(1).Text())
		if contract != "TX" || strings.Contains(month, "W") {
			return true
		}

		close, ok := parseFloat(cells.Eq(5).Text())
		if !ok {
			return true
		}
		change, _ := parseSigned(cells.Eq(6).Text())
		pct, _ := parseSigned(cells.Eq(7).Text())

		fut = &market.Futures{Close: close, Change: change, ChangePct: pct}
		return false
	})

	if fut == nil {
		return nil, newErr("", ReasonSchemaDrift, "front-month TX row not found", nil)
	}
	return fut, nil
}
