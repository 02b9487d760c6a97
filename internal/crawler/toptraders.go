package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// topTradersAdapter scrapes the ten largest traders' TX positions from
// the TAIFEX large trader report.
type topTradersAdapter struct {
	c *Crawler
}

func (a *topTradersAdapter) Section() market.Section { return market.SectionTopTraders }

func (a *topTradersAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	form := url.Values{
		"queryType":   {"1"},
		"goDay":       {""},
		"doQuery":     {"1"},
		"dateaddcnt":  {""},
		"queryDate":   {date.Slash()},
		"commodityId": {"TXF"},
	}
	resp, err := a.c.client.PostForm(ctx, a.c.taifexBase+"/cht/3/largeTraderFutQry", form)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	top, perr := parseTopTraders(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	return func(rec *market.ChipRecord) { rec.TopTraders = top }, nil
}

// parseTopTraders reads the 多方/空方 rows for the ten largest traders
// and the ten largest specific institutions. The position count is the
// first numeric cell after the label.
func parseTopTraders(body []byte) (*market.TopTraders, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	table := doc.Find("table.table_f").First()
	if table.Length() == 0 {
		return nil, newErr("", ReasonNoData, "large trader table missing", nil)
	}

	top := &market.TopTraders{}
	var matched int

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())

		value, ok := firstNumericCell(cells)
		if !ok {
			return
		}

		switch {
		case strings.Contains(label, "十大交易人") && strings.Contains(label, "多方"):
			top.Top10Long = value
			matched++
		case strings.Contains(label, "十大交易人") && strings.Contains(label, "空方"):
			top.Top10Short = value
			matched++
		case strings.Contains(label, "十大特定法人") && strings.Contains(label, "多方"):
			top.SpecificLong = value
			matched++
		case strings.Contains(label, "十大特定法人") && strings.Contains(label, "空方"):
			top.SpecificShort = value
			matched++
		}
	})

	if matched == 0 {
		return nil, newErr("", ReasonSchemaDrift, "large trader rows not found", nil)
	}

	top.Top10Net = top.Top10Long - top.Top10Short
	top.SpecificNet = top.SpecificLong - top.SpecificShort
	return top, nil
}

// firstNumericCell returns the first integer cell after the label. Lot
// counts share cells with their market-share percentage in parentheses,
// so anything from the opening paren on is dropped.
func firstNumericCell(cells *goquery.Selection) (int64, bool) {
	for i := 1; i < cells.Length(); i++ {
		text := strings.TrimSpace(cells.Eq(i).Text())
		if idx := strings.IndexAny(text, "(（"); idx >= 0 {
			text = text[:idx]
		}
		if v, ok := parseInt(text); ok {
			return v, true
		}
	}
	return 0, false
}
