package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// optionsAdapter scrapes foreign net open interest in TXO calls and
// puts from the TAIFEX options trading-by-investor report.
type optionsAdapter struct {
	c *Crawler
}

func (a *optionsAdapter) Section() market.Section { return market.SectionOptions }

func (a *optionsAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	form := url.Values{
		"queryType":  {"1"},
		"goDay":      {""},
		"doQuery":    {"1"},
		"dateaddcnt": {""},
		"queryDate":  {date.Slash()},
	}
	resp, err := a.c.client.PostForm(ctx, a.c.taifexBase+"/cht/3/callsAndPutsDate", form)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	opt, perr := parseOptions(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	return func(rec *market.ChipRecord) { rec.Options = opt }, nil
}

// parseOptions walks the call/put investor rows. Like the futures
// investor report, 買權/賣權 labels span their identity rows via
// rowspan, and the last two cells are net open interest in lots and
// contract value.
func parseOptions(body []byte) (*market.Options, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	table := doc.Find("table.table_f").First()
	if table.Length() == 0 {
		return nil, newErr("", ReasonNoData, "options investor table missing", nil)
	}

	opt := &market.Options{}
	var side string
	var matched int

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		var isForeign bool
		cells.Each(func(i int, cell *goquery.Selection) {
			if i > 4 {
				return
			}
			text := strings.TrimSpace(cell.Text())
			switch {
			case strings.Contains(text, "買權"):
				side = "call"
			case strings.Contains(text, "賣權"):
				side = "put"
			case strings.Contains(text, "外資") && !strings.Contains(text, "外資自營"):
				isForeign = true
			}
		})

		if !isForeign || side == "" || cells.Length() < 5 {
			return
		}
		net, ok := parseInt(cells.Eq(cells.Length() - 2).Text())
		if !ok {
			return
		}
		matched++

		if side == "call" {
			opt.ForeignCallNet = net
		} else {
			opt.ForeignPutNet = net
		}
	})

	if matched == 0 {
		return nil, newErr("", ReasonSchemaDrift, "foreign option rows not found", nil)
	}
	return opt, nil
}
