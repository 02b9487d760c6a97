package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// instFuturesAdapter scrapes institutional open interest by contract
// from the TAIFEX trading-by-investor report, then pulls total open
// interest for the small contracts from the daily market report. The
// totals feed the retail positioning indicator downstream.
type instFuturesAdapter struct {
	c *Crawler
}

func (a *instFuturesAdapter) Section() market.Section { return market.SectionInstFutures }

func (a *instFuturesAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	form := url.Values{
		"queryType":  {"1"},
		"goDay":      {""},
		"doQuery":    {"1"},
		"dateaddcnt": {""},
		"queryDate":  {date.Slash()},
	}
	resp, err := a.c.client.PostForm(ctx, a.c.taifexBase+"/cht/3/futContractsDate", form)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	inst, perr := parseInstFutures(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	// Total open interest is not on the investor report. The daily
	// market report lists it per expiry; sum it per contract.
	if oi, err := a.fetchOpenInterest(ctx, "MTX", date); err == nil {
		inst.MTXOpenInterest = oi
	}
	if oi, err := a.fetchOpenInterest(ctx, "TMF", date); err == nil {
		inst.XMTXOI = oi
	}

	return func(rec *market.ChipRecord) { rec.InstFutures = inst }, nil
}

func (a *instFuturesAdapter) fetchOpenInterest(ctx context.Context, commodity string, date market.TradeDate) (int64, error) {
	form := url.Values{
		"queryType":    {"2"},
		"marketCode":   {"0"},
		"dateaddcnt":   {""},
		"commodity_id": {commodity},
		"queryDate":    {date.Slash()},
	}
	resp, err := a.c.client.PostForm(ctx, a.c.taifexBase+"/cht/3/futDailyMarketReport", form)
	if err != nil {
		return 0, err
	}
	body, err := readBody(resp)
	if err != nil {
		return 0, err
	}
	return parseOpenInterest(body, commodity)
}

// parseOpenInterest sums the 未沖銷契約量 column over every expiry row
// of the given contract.
func parseOpenInterest(body []byte, commodity string) (int64, error) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return 0, err
	}

	var total int64
	doc.Find("table.table_f").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 12 {
			return
		}
		if strings.TrimSpace(cells.Eq(0).Text()) != commodity {
			return
		}
		if oi, ok := parseInt(cells.Eq(11).Text()); ok {
			total += oi
		}
	})
	return total, nil
}

// parseInstFutures walks the investor report rows. Contract blocks span
// three identity rows via rowspan, so the contract name only appears on
// the first; the current contract carries forward. The last two cells
// of a data row are net open interest in lots and contract value, in
// that order.
func parseInstFutures(body []byte) (*market.InstFutures, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	table := doc.Find("table.table_f").First()
	if table.Length() == 0 {
		return nil, newErr("", ReasonNoData, "investor report table missing", nil)
	}

	inst := &market.InstFutures{}
	var contract string
	var matched int

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		var identity string
		cells.Each(func(i int, cell *goquery.Selection) {
			// Contract and identity labels sit in the first cells
			// before the numeric columns.
			if i > 3 {
				return
			}
			text := strings.TrimSpace(cell.Text())
			switch {
			case strings.Contains(text, "小型臺指期貨"):
				contract = "mtx"
			case strings.Contains(text, "微型臺指期貨"):
				contract = "xmtx"
			case strings.Contains(text, "臺股期貨"):
				contract = "tx"
			case strings.Contains(text, "外資") && !strings.Contains(text, "外資自營"):
				identity = "foreign"
			case strings.Contains(text, "自營商"):
				identity = "dealer"
			case strings.Contains(text, "投信"):
				identity = "trust"
			}
		})

		if identity == "" || contract == "" || cells.Length() < 5 {
			return
		}
		net, ok := parseInt(cells.Eq(cells.Length() - 2).Text())
		if !ok {
			return
		}
		matched++

		switch contract {
		case "tx":
			switch identity {
			case "foreign":
				inst.ForeignTXNet = net
			case "dealer":
				inst.DealerTXNet = net
			case "trust":
				inst.TrustTXNet = net
			}
		case "mtx":
			if identity == "foreign" {
				inst.ForeignMTXNet = net
			}
			inst.InstMTXNet += net
		case "xmtx":
			inst.InstXMTXNet += net
		}
	})

	if matched == 0 {
		return nil, newErr("", ReasonSchemaDrift, "no investor rows found", nil)
	}
	return inst, nil
}
