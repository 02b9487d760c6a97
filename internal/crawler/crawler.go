// Package crawler fetches post-close exchange reports and normalizes
// them into market sections. Each source page has its own adapter so
// one broken page never takes down the rest of the daily snapshot.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/pkg/config"
	"github.com/weichenlin/twchip/pkg/httputil"
)

// Reason classifies why a fetch failed.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonHTTPStatus  Reason = "http_status"
	ReasonSchemaDrift Reason = "schema_drift"
	ReasonParse       Reason = "parse"
	ReasonNoData      Reason = "no_data"
)

// FetchError is a classified adapter failure. Timeouts and server-side
// HTTP failures are transient and worth retrying; a 4xx response means
// the request itself is wrong and will keep failing, and the remaining
// reasons mean the page changed shape or simply has nothing for the
// date.
type FetchError struct {
	Section market.Section
	Reason  Reason
	Msg     string
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Section, e.Reason, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Section, e.Reason, e.Msg)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the error is worth retrying. Transport
// errors carry no status code and are retried; a 4xx status is not.
func (e *FetchError) Transient() bool {
	switch e.Reason {
	case ReasonTimeout:
		return true
	case ReasonHTTPStatus:
		return e.Status == 0 || httputil.IsRetryableStatus(e.Status)
	}
	return false
}

// IsTransient reports whether err is a transient fetch error.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient()
}

func newErr(section market.Section, reason Reason, msg string, cause error) *FetchError {
	return &FetchError{Section: section, Reason: reason, Msg: msg, Err: cause}
}

// wrapFetch classifies a transport-level error from the HTTP client.
func wrapFetch(section market.Section, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newErr(section, ReasonTimeout, "request timed out", err)
	}
	fe := newErr(section, ReasonHTTPStatus, "request failed", err)
	var se *httputil.StatusError
	if errors.As(err, &se) {
		fe.Status = se.StatusCode
	}
	return fe
}

// readBody drains a POST response, rejecting non-200 statuses.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// Result applies one fetched section onto a record.
type Result func(rec *market.ChipRecord)

// Adapter fetches and parses one section for one trading date.
type Adapter interface {
	Section() market.Section
	Fetch(ctx context.Context, date market.TradeDate) (Result, error)
}

// Crawler owns the source adapters and the shared HTTP client.
type Crawler struct {
	client     *httputil.Client
	twseBase   string
	taifexBase string
}

// New builds a crawler over the shared HTTP client. Transport-level
// retry is turned off here; the aggregator retries whole section
// fetches, so CRAWLER_MAX_RETRIES is the only bound on requests per
// source.
func New(cfg *config.Config, client *httputil.Client) *Crawler {
	return &Crawler{
		client:     client.DisableRetry(),
		twseBase:   cfg.Crawler.TWSEBaseURL,
		taifexBase: cfg.Crawler.TAIFEXBaseURL,
	}
}

// Adapters returns every source adapter in report order.
func (c *Crawler) Adapters() []Adapter {
	return []Adapter{
		&taiexAdapter{c},
		&futuresAdapter{c},
		&institutionalAdapter{c},
		&instFuturesAdapter{c},
		&topTradersAdapter{c},
		&optionsAdapter{c},
		&pcRatioAdapter{c},
		&vixAdapter{c},
	}
}

// Adapter looks up a single adapter by section name.
func (c *Crawler) Adapter(s market.Section) (Adapter, error) {
	for _, a := range c.Adapters() {
		if a.Section() == s {
			return a, nil
		}
	}
	return nil, fmt.Errorf("unknown section %q", s)
}
