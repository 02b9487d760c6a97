package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/weichenlin/twchip/internal/market"
)

// vixAdapter fetches the TAIFEX volatility index intraday file and
// takes the closing value from the last-minute average line.
type vixAdapter struct {
	c *Crawler
}

var vixClosePattern = regexp.MustCompile(`Last 1 min AVG\s+(\d+\.\d+)`)

func (a *vixAdapter) Section() market.Section { return market.SectionVIX }

func (a *vixAdapter) Fetch(ctx context.Context, date market.TradeDate) (Result, error) {
	sec := a.Section()

	url := fmt.Sprintf("%s/cht/7/getVixData?filesname=%s", a.c.taifexBase, date)
	body, err := a.c.client.GetBody(ctx, url)
	if err != nil {
		return nil, wrapFetch(sec, err)
	}

	vix, perr := parseVIX(body)
	if perr != nil {
		perr.Section = sec
		return nil, perr
	}

	return func(rec *market.ChipRecord) { rec.VIX = vix }, nil
}

func parseVIX(body []byte) (*market.VIX, *FetchError) {
	text := decodeText(body)
	if strings.TrimSpace(text) == "" || strings.Contains(text, "無資料") {
		return nil, newErr("", ReasonNoData, "vix file empty for date", nil)
	}

	if m := vixClosePattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return &market.VIX{Close: v}, nil
		}
	}

	// Fall back to the last per-minute value in the file.
	lines := strings.Split(text, "\n")
	tail := regexp.MustCompile(`(\d+\.\d+)\s*$`)
	for i := len(lines) - 1; i >= 0; i-- {
		if m := tail.FindStringSubmatch(strings.TrimSpace(lines[i])); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return &market.VIX{Close: v}, nil
			}
		}
	}

	return nil, newErr("", ReasonSchemaDrift, "closing average not found in vix file", nil)
}
