package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// institutionalAdapter scrapes the three institutional groups' spot
// market net buy/sell from the TWSE BFI82U report.
type institutionalAdapter struct {
	c *Crawler
}

func (a *institutionalAdapter) Section() market.Section { return market.SectionInstitutional }

func (a *institutionalAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	url := fmt.Sprintf("%s/rwd/zh/fund/BFI82U?response=html&date=%s", a.c.twseBase, date)
	body, err := a.c.client.GetBody(ctx, url)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	inst, perr := parseInstitutional(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	return func(rec *market.ChipRecord) { rec.Institutional = inst }, nil
}

// parseInstitutional reads the per-group rows. The fourth cell is the
// buy/sell difference in TWD; values are converted to 億.
func parseInstitutional(body []byte) (*market.Institutional, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, newErr("", ReasonNoData, "no institutional table", nil)
	}

	inst := &market.Institutional{}
	var matched int
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		category := strings.TrimSpace(cells.Eq(0).Text())
		diff, ok := parseFloat(cells.Eq(3).Text())
		if !ok {
			return
		}
		yi := diff / 1e8

		switch {
		case strings.Contains(category, "自營商(自行買賣)"):
			inst.DealerSelfNet = yi
			matched++
		case strings.Contains(category, "自營商(避險)"):
			inst.DealerHedgeNet = yi
			matched++
		case strings.Contains(category, "投信"):
			inst.TrustNet = yi
			matched++
		case strings.Contains(category, "外資及陸資") && !strings.Contains(category, "外資自營"):
			inst.ForeignNet = yi
			matched++
		case strings.Contains(category, "合計"):
			inst.TotalNet = yi
			matched++
		}
	})

	if matched == 0 {
		return nil, newErr("", ReasonSchemaDrift, "no known group rows found", nil)
	}

	inst.DealerNet = inst.DealerSelfNet + inst.DealerHedgeNet
	return inst, nil
}
