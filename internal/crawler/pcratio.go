package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/weichenlin/twchip/internal/market"
)

// pcRatioAdapter scrapes the TXO put/call ratios. The report lists
// recent sessions newest first, so the previous session's open
// interest ratio comes for free from the following row.
type pcRatioAdapter struct {
	c *Crawler
}

func (a *pcRatioAdapter) Section() market.Section { return market.SectionPCRatio }

func (a *pcRatioAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	// Reach back far enough to include the prior session even across
	// long holiday breaks.
	start := market.NewTradeDate(date.Time().AddDate(0, 0, -14))
	q := url.Values{
		"queryStartDate": {start.Slash()},
		"queryEndDate":   {date.Slash()},
	}
	reqURL := fmt.Sprintf("%s/cht/3/pcRatioExcel?%s", a.c.taifexBase, q.Encode())
	body, err := a.c.client.GetBody(ctx, reqURL)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	pc, perr := parsePCRatio(body, date)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	return func(rec *market.ChipRecord) { rec.PCRatio = pc }, nil
}

// parsePCRatio locates the row for the requested date. Cells: date,
// put volume, call volume, volume ratio, put OI, call OI, OI ratio.
func parsePCRatio(body []byte, date market.TradeDate) (*market.PCRatio, *FetchError) {
	doc, err := goquery.NewDocumentFromReader(htmlReader(body))
	if err != nil {
		return nil, newErr("", ReasonParse, "invalid HTML", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, newErr("", ReasonNoData, "put/call ratio table missing", nil)
	}

	want := date.Slash()
	var pc *market.PCRatio
	rows := table.Find("tr")
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return true
		}
		if strings.TrimSpace(cells.Eq(0).Text()) != want {
			return true
		}

		volRatio, okV := parseFloat(cells.Eq(3).Text())
		oiRatio, okO := parseFloat(cells.Eq(6).Text())
		if !okV || !okO {
			return true
		}
		pc = &market.PCRatio{VolumeRatio: volRatio, OIRatio: oiRatio}

		// Rows run newest first, so the next row is the prior session.
		if i+1 < rows.Length() {
			prevCells := rows.Eq(i + 1).Find("td")
			if prevCells.Length() >= 7 {
				if prevOI, ok := parseFloat(prevCells.Eq(6).Text()); ok {
					pc.OIRatioChg = market.Ptr(oiRatio - prevOI)
				}
			}
		}
		return false
	})

	if pc == nil {
		return nil, newErr("", ReasonNoData, "no ratio row for "+string(date), nil)
	}
	return pc, nil
}
