package market

import (
	"errors"
	"fmt"
	"time"
)

// reportCutoffHour is the local hour after which the current session's
// post-close data is expected to be published by the exchanges.
const reportCutoffHour = 15

// ErrNoTradingDay indicates the requested date has no market session.
var ErrNoTradingDay = errors.New("no trading session on requested date")

var taipei *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		// Asia/Taipei is UTC+8 with no DST.
		loc = time.FixedZone("Asia/Taipei", 8*60*60)
	}
	taipei = loc
}

// Location returns the exchange timezone.
func Location() *time.Location { return taipei }

// TradeDate is a trading date in YYYYMMDD form.
type TradeDate string

// NewTradeDate builds a TradeDate from a time instant in Taipei time.
func NewTradeDate(t time.Time) TradeDate {
	return TradeDate(t.In(taipei).Format("20060102"))
}

// ParseTradeDate validates a YYYYMMDD string.
func ParseTradeDate(s string) (TradeDate, error) {
	if _, err := time.ParseInLocation("20060102", s, taipei); err != nil {
		return "", fmt.Errorf("invalid trade date %q: %w", s, err)
	}
	return TradeDate(s), nil
}

// Time returns the midnight instant of the date in Taipei time.
func (d TradeDate) Time() time.Time {
	t, _ := time.ParseInLocation("20060102", string(d), taipei)
	return t
}

// String returns the YYYYMMDD form.
func (d TradeDate) String() string { return string(d) }

// Slash returns the date as YYYY/MM/DD, the form TAIFEX query forms take.
func (d TradeDate) Slash() string {
	return d.Time().Format("2006/01/02")
}

// Dash returns the date as YYYY-MM-DD.
func (d TradeDate) Dash() string {
	return d.Time().Format("2006-01-02")
}

// Display returns the date as YYYY/MM/DD (週X) for report headers.
func (d TradeDate) Display() string {
	t := d.Time()
	weekdays := [...]string{"日", "一", "二", "三", "四", "五", "六"}
	return fmt.Sprintf("%s (週%s)", t.Format("2006/01/02"), weekdays[t.Weekday()])
}

// Calendar answers trading-day questions. Weekends never trade; extra
// holidays come from configuration since the exchanges publish them
// yearly and there is no feed for them.
type Calendar struct {
	holidays map[TradeDate]bool
}

// NewCalendar builds a calendar from YYYYMMDD holiday strings.
// Malformed entries are ignored; config validation rejects them earlier.
func NewCalendar(holidays []string) *Calendar {
	m := make(map[TradeDate]bool, len(holidays))
	for _, h := range holidays {
		if d, err := ParseTradeDate(h); err == nil {
			m[d] = true
		}
	}
	return &Calendar{holidays: m}
}

// IsTradingDay reports whether the date has a market session.
func (c *Calendar) IsTradingDay(d TradeDate) bool {
	wd := d.Time().Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.holidays[d]
}

// LatestTradeDate returns the most recent trading date whose post-close
// data should be available at the given instant. Before the 15:00
// Taipei cutoff the current session's reports are not out yet, so the
// previous trading day is returned.
func (c *Calendar) LatestTradeDate(now time.Time) TradeDate {
	local := now.In(taipei)
	d := NewTradeDate(local)
	if local.Hour() < reportCutoffHour || !c.IsTradingDay(d) {
		return c.PrevTradingDay(d)
	}
	return d
}

// PrevTradingDay returns the trading day strictly before d.
func (c *Calendar) PrevTradingDay(d TradeDate) TradeDate {
	t := d.Time()
	for {
		t = t.AddDate(0, 0, -1)
		prev := NewTradeDate(t)
		if c.IsTradingDay(prev) {
			return prev
		}
	}
}

// Validate returns ErrNoTradingDay when the date has no session.
func (c *Calendar) Validate(d TradeDate) error {
	if !c.IsTradingDay(d) {
		return fmt.Errorf("%w: %s", ErrNoTradingDay, d)
	}
	return nil
}
