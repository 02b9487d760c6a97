package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/weichenlin/twchip/internal/aggregator"
	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/report"
	"github.com/weichenlin/twchip/pkg/logger"
)

// Collector produces the day's merged record.
type Collector interface {
	Collect(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error)
}

// Store is the repository surface the job needs.
type Store interface {
	GetByDate(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error)
	Upsert(ctx context.Context, rec *market.ChipRecord) error
}

// Pusher delivers the finished report.
type Pusher interface {
	PushRecord(ctx context.Context, rec *market.ChipRecord, view report.View) error
}

// DailyReport is the post-close cycle: collect, persist, push. It skips
// non-trading days and dates that were already pushed, so re-running it
// after a partial failure is safe.
type DailyReport struct {
	collector Collector
	store     Store
	pusher    Pusher
	calendar  *market.Calendar
	schedule  string
	now       func() time.Time
	log       zerolog.Logger
}

// NewDailyReport wires the daily cycle. pusher may be nil to collect
// and persist without distribution.
func NewDailyReport(collector Collector, store Store, pusher Pusher, cal *market.Calendar, schedule string) *DailyReport {
	return &DailyReport{
		collector: collector,
		store:     store,
		pusher:    pusher,
		calendar:  cal,
		schedule:  schedule,
		now:       time.Now,
		log:       logger.With("daily_report"),
	}
}

func (j *DailyReport) Name() string     { return "daily_report" }
func (j *DailyReport) Schedule() string { return j.schedule }

func (j *DailyReport) Run(ctx context.Context) error {
	now := j.now()
	if !j.calendar.IsTradingDay(market.NewTradeDate(now)) {
		j.log.Info().Msg("No trading session today, skipping")
		return nil
	}
	date := j.calendar.LatestTradeDate(now)

	if existing, err := j.store.GetByDate(ctx, date); err == nil && existing.Pushed {
		j.log.Info().Str("date", date.String()).Msg("Report already pushed, skipping")
		return nil
	}

	return j.RunFor(ctx, date, j.pusher != nil)
}

// RunFor executes one cycle for an explicit date. The backfill command
// uses it to rebuild past sessions without the schedule gates.
func (j *DailyReport) RunFor(ctx context.Context, date market.TradeDate, push bool) error {
	rec, err := j.collector.Collect(ctx, date)

	var usability *aggregator.UsabilityError
	unusable := errors.As(err, &usability)
	if err != nil && !unusable {
		return fmt.Errorf("collect %s: %w", date, err)
	}

	if err := j.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("persist %s: %w", date, err)
	}
	j.log.Info().Str("date", date.String()).Int("sections", len(rec.Sections())).
		Msg("Record persisted")

	if unusable {
		// The partial record is kept for later backfill but is not
		// pushed to subscribers.
		j.log.Warn().Str("date", date.String()).Err(usability).
			Msg("Record below usability threshold, push withheld")
		return nil
	}

	if !push || j.pusher == nil {
		return nil
	}
	if err := j.pusher.PushRecord(ctx, rec, report.ViewFull); err != nil {
		return fmt.Errorf("push %s: %w", date, err)
	}
	return nil
}
