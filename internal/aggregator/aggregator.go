// Package aggregator fans the source adapters out over a worker pool
// and merges their sections into one per-date record. Adapter failures
// become diagnostics on the record instead of failing the whole run.
package aggregator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weichenlin/twchip/internal/crawler"
	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/pkg/config"
	"github.com/weichenlin/twchip/pkg/logger"
)

// RecordSource looks up previously persisted records for enrichment.
// A nil record with a nil error means nothing is stored for the date.
type RecordSource interface {
	GetByDate(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error)
}

// UsabilityError reports that the merged record is missing sections the
// configuration marks as required. The record is still returned and
// should still be persisted; only distribution is held back.
type UsabilityError struct {
	Missing []market.Section
}

func (e *UsabilityError) Error() string {
	names := make([]string, len(e.Missing))
	for i, s := range e.Missing {
		names[i] = string(s)
	}
	return fmt.Sprintf("required sections missing: %s", strings.Join(names, ", "))
}

// Aggregator coordinates one collection run.
type Aggregator struct {
	adapters []crawler.Adapter
	prev     RecordSource
	calendar *market.Calendar
	workers  int
	retries  int
	delay    time.Duration
	required []market.Section
	log      zerolog.Logger
}

// New builds an aggregator over the given source adapters, normally
// crawler.Crawler.Adapters().
func New(cfg *config.Config, adapters []crawler.Adapter, prev RecordSource, cal *market.Calendar) *Aggregator {
	required := make([]market.Section, 0, len(cfg.Scheduler.RequiredSections))
	for _, s := range cfg.Scheduler.RequiredSections {
		if sec := market.Section(s); market.ValidSection(sec) {
			required = append(required, sec)
		}
	}

	workers := cfg.Crawler.Workers
	if workers < 1 {
		workers = 1
	}

	return &Aggregator{
		adapters: adapters,
		prev:     prev,
		calendar: cal,
		workers:  workers,
		retries:  cfg.Crawler.MaxRetries,
		delay:    cfg.Crawler.InitialDelay,
		required: required,
		log:      logger.With("aggregator"),
	}
}

type fetchOutcome struct {
	section market.Section
	result  crawler.Result
	err     error
}

// Collect fetches every section for the date and merges the results.
// When required sections are missing the partial record is returned
// together with a UsabilityError.
func (a *Aggregator) Collect(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error) {
	if err := a.calendar.Validate(date); err != nil {
		return nil, err
	}

	start := time.Now()

	jobs := make(chan crawler.Adapter)
	outcomes := make(chan fetchOutcome, len(a.adapters))

	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for adapter := range jobs {
				result, err := a.fetchWithRetry(ctx, adapter, date)
				outcomes <- fetchOutcome{section: adapter.Section(), result: result, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, adapter := range a.adapters {
			select {
			case jobs <- adapter:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(outcomes)

	now := time.Now()
	rec := &market.ChipRecord{
		TradeDate:   date,
		Diagnostics: make(map[market.Section]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for outcome := range outcomes {
		if outcome.err != nil {
			rec.Diagnostics[outcome.section] = outcome.err.Error()
			a.log.Warn().
				Str("section", string(outcome.section)).
				Str("date", string(date)).
				Err(outcome.err).
				Msg("Section fetch failed")
			continue
		}
		outcome.result(rec)
	}
	if len(rec.Diagnostics) == 0 {
		rec.Diagnostics = nil
	}

	a.derive(ctx, rec)

	a.log.Info().
		Str("date", string(date)).
		Int("sections", len(rec.Sections())).
		Int("failed", len(rec.Diagnostics)).
		Dur("duration", time.Since(start)).
		Msg("Collection finished")

	if missing := a.missingRequired(rec); len(missing) > 0 {
		return rec, &UsabilityError{Missing: missing}
	}
	return rec, nil
}

// CollectSection fetches a single section, without derivation. Used by
// the backfill CLI to repair one source.
func (a *Aggregator) CollectSection(ctx context.Context, date market.TradeDate, section market.Section) (crawler.Result, error) {
	for _, adapter := range a.adapters {
		if adapter.Section() == section {
			return a.fetchWithRetry(ctx, adapter, date)
		}
	}
	return nil, fmt.Errorf("unknown section %q", section)
}

func (a *Aggregator) fetchWithRetry(ctx context.Context, adapter crawler.Adapter, date market.TradeDate) (crawler.Result, error) {
	var result crawler.Result
	var err error

	delay := a.delay
	for attempt := 0; attempt <= a.retries; attempt++ {
		result, err = adapter.Fetch(ctx, date)
		if err == nil || !crawler.IsTransient(err) {
			return result, err
		}
		if attempt == a.retries {
			break
		}

		a.log.Warn().
			Str("section", string(adapter.Section())).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Retrying section fetch")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return result, err
}

func (a *Aggregator) missingRequired(rec *market.ChipRecord) []market.Section {
	var missing []market.Section
	for _, s := range a.required {
		if !rec.Has(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// derive fills the computed fields: futures basis, the retail
// positioning indicators, and everything compared against the previous
// session's persisted record.
func (a *Aggregator) derive(ctx context.Context, rec *market.ChipRecord) {
	if rec.Futures != nil && rec.Taiex != nil {
		rec.Futures.Basis = rec.Futures.Close - rec.Taiex.Close
	}

	if rec.InstFutures != nil {
		rec.Retail = &market.Retail{
			MTXRatio:  market.RetailRatio(rec.InstFutures.InstMTXNet, rec.InstFutures.MTXOpenInterest),
			XMTXRatio: market.RetailRatio(rec.InstFutures.InstXMTXNet, rec.InstFutures.XMTXOI),
		}
	}

	prev := a.previousRecord(ctx, rec.TradeDate)
	if prev == nil {
		// First session on record still gets one-day streaks.
		if rec.Institutional != nil {
			rec.Institutional.ForeignDays = streak(rec.Institutional.ForeignNet, 0)
			rec.Institutional.TrustDays = streak(rec.Institutional.TrustNet, 0)
			rec.Institutional.DealerDays = streak(rec.Institutional.DealerNet, 0)
		}
		return
	}

	if rec.Taiex != nil && prev.Taiex != nil {
		rec.Taiex.TurnoverChg = market.Ptr(rec.Taiex.TurnoverYi - prev.Taiex.TurnoverYi)
	}

	if rec.Institutional != nil {
		var fd, td, dd int
		if prev.Institutional != nil {
			fd, td, dd = prev.Institutional.ForeignDays, prev.Institutional.TrustDays, prev.Institutional.DealerDays
		}
		rec.Institutional.ForeignDays = streak(rec.Institutional.ForeignNet, fd)
		rec.Institutional.TrustDays = streak(rec.Institutional.TrustNet, td)
		rec.Institutional.DealerDays = streak(rec.Institutional.DealerNet, dd)
	}

	if rec.InstFutures != nil && prev.InstFutures != nil {
		rec.InstFutures.ForeignTXChg = market.Ptr(rec.InstFutures.ForeignTXNet - prev.InstFutures.ForeignTXNet)
		rec.InstFutures.ForeignMTXChg = market.Ptr(rec.InstFutures.ForeignMTXNet - prev.InstFutures.ForeignMTXNet)
	}

	if rec.TopTraders != nil && prev.TopTraders != nil {
		rec.TopTraders.Top10Chg = market.Ptr(rec.TopTraders.Top10Net - prev.TopTraders.Top10Net)
		rec.TopTraders.SpecificChg = market.Ptr(rec.TopTraders.SpecificNet - prev.TopTraders.SpecificNet)
	}

	if rec.Options != nil && prev.Options != nil {
		rec.Options.ForeignCallChg = market.Ptr(rec.Options.ForeignCallNet - prev.Options.ForeignCallNet)
		rec.Options.ForeignPutChg = market.Ptr(rec.Options.ForeignPutNet - prev.Options.ForeignPutNet)
	}

	if rec.VIX != nil && prev.VIX != nil {
		rec.VIX.Change = market.Ptr(rec.VIX.Close - prev.VIX.Close)
	}

	if rec.Retail != nil && prev.Retail != nil {
		rec.Retail.MTXRatioChg = market.Ptr(rec.Retail.MTXRatio - prev.Retail.MTXRatio)
		rec.Retail.XMTXRatioChg = market.Ptr(rec.Retail.XMTXRatio - prev.Retail.XMTXRatio)
	}
}

func (a *Aggregator) previousRecord(ctx context.Context, date market.TradeDate) *market.ChipRecord {
	if a.prev == nil || a.calendar == nil {
		return nil
	}
	prevDate := a.calendar.PrevTradingDay(date)
	rec, err := a.prev.GetByDate(ctx, prevDate)
	if err != nil {
		a.log.Debug().
			Str("date", string(prevDate)).
			Err(err).
			Msg("No previous record for enrichment")
		return nil
	}
	return rec
}

// streak extends a same-sign run. Positive values count net-buy
// sessions, negative net-sell; a zero net breaks the run.
func streak(net float64, prevDays int) int {
	switch {
	case net > 0:
		if prevDays > 0 {
			return prevDays + 1
		}
		return 1
	case net < 0:
		if prevDays < 0 {
			return prevDays - 1
		}
		return -1
	default:
		return 0
	}
}
