package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weichenlin/twchip/internal/crawler"
	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/pkg/config"
)

type fakeAdapter struct {
	section market.Section
	result  crawler.Result
	err     error
	// failures counts transient errors returned before succeeding
	failures int
	calls    int
}

func (f *fakeAdapter) Section() market.Section { return f.section }

func (f *fakeAdapter) Fetch(ctx context.Context, date market.TradeDate) (crawler.Result, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, &crawler.FetchError{Section: f.section, Reason: crawler.ReasonHTTPStatus, Msg: "flaky"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSource struct {
	records map[market.TradeDate]*market.ChipRecord
}

func (s *fakeSource) GetByDate(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error) {
	rec, ok := s.records[date]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Crawler.Workers = 4
	cfg.Crawler.MaxRetries = 2
	cfg.Crawler.InitialDelay = time.Millisecond
	cfg.Scheduler.RequiredSections = []string{"taiex", "institutional"}
	return cfg
}

func taiexOK() *fakeAdapter {
	return &fakeAdapter{
		section: market.SectionTaiex,
		result:  func(r *market.ChipRecord) { r.Taiex = &market.Taiex{Close: 24100, Change: 162, TurnoverYi: 4321} },
	}
}

func institutionalOK() *fakeAdapter {
	return &fakeAdapter{
		section: market.SectionInstitutional,
		result: func(r *market.ChipRecord) {
			r.Institutional = &market.Institutional{ForeignNet: 220, TrustNet: 50, DealerNet: -15, TotalNet: 255}
		},
	}
}

func TestCollectAllSectionsSucceed(t *testing.T) {
	adapters := []crawler.Adapter{
		taiexOK(),
		institutionalOK(),
		&fakeAdapter{
			section: market.SectionFutures,
			result:  func(r *market.ChipRecord) { r.Futures = &market.Futures{Close: 24150, Change: 170} },
		},
	}

	agg := New(testConfig(), adapters, nil, market.NewCalendar(nil))
	rec, err := agg.Collect(context.Background(), "20260828")
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if rec.Taiex == nil || rec.Institutional == nil || rec.Futures == nil {
		t.Fatal("Expected all fetched sections on the record")
	}
	if len(rec.Diagnostics) != 0 {
		t.Errorf("Expected no diagnostics, got %v", rec.Diagnostics)
	}

	// Derived basis: futures close minus spot close.
	if rec.Futures.Basis != 50 {
		t.Errorf("Basis = %v, want 50", rec.Futures.Basis)
	}

	// First record on file still gets one-day streaks.
	if rec.Institutional.ForeignDays != 1 {
		t.Errorf("ForeignDays = %d, want 1", rec.Institutional.ForeignDays)
	}
	if rec.Institutional.DealerDays != -1 {
		t.Errorf("DealerDays = %d, want -1", rec.Institutional.DealerDays)
	}
}

func TestCollectNonTradingDay(t *testing.T) {
	taiex := taiexOK()
	agg := New(testConfig(), []crawler.Adapter{taiex, institutionalOK()}, nil, market.NewCalendar(nil))

	// A Saturday.
	_, err := agg.Collect(context.Background(), "20260829")
	if !errors.Is(err, market.ErrNoTradingDay) {
		t.Fatalf("Expected ErrNoTradingDay, got %v", err)
	}
	if taiex.calls != 0 {
		t.Errorf("Expected zero outbound fetches, got %d", taiex.calls)
	}
}

func TestCollectPartialFailure(t *testing.T) {
	adapters := []crawler.Adapter{
		taiexOK(),
		institutionalOK(),
		&fakeAdapter{
			section: market.SectionVIX,
			err:     &crawler.FetchError{Section: market.SectionVIX, Reason: crawler.ReasonNoData, Msg: "vix file empty"},
		},
	}

	agg := New(testConfig(), adapters, nil, market.NewCalendar(nil))
	rec, err := agg.Collect(context.Background(), "20260828")
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if rec.VIX != nil {
		t.Error("Failed section must stay nil")
	}
	if _, ok := rec.Diagnostics[market.SectionVIX]; !ok {
		t.Error("Expected diagnostics entry for failed vix section")
	}
}

func TestCollectUsabilityThreshold(t *testing.T) {
	adapters := []crawler.Adapter{
		taiexOK(),
		&fakeAdapter{
			section: market.SectionInstitutional,
			err:     &crawler.FetchError{Section: market.SectionInstitutional, Reason: crawler.ReasonSchemaDrift, Msg: "layout changed"},
		},
	}

	agg := New(testConfig(), adapters, nil, market.NewCalendar(nil))
	rec, err := agg.Collect(context.Background(), "20260828")

	var uerr *UsabilityError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected UsabilityError, got %v", err)
	}
	if len(uerr.Missing) != 1 || uerr.Missing[0] != market.SectionInstitutional {
		t.Errorf("Missing = %v, want [institutional]", uerr.Missing)
	}

	// The partial record is still returned for persistence.
	if rec == nil || rec.Taiex == nil {
		t.Fatal("Expected partial record alongside the usability error")
	}
}

func TestCollectRetriesTransient(t *testing.T) {
	flaky := taiexOK()
	flaky.failures = 2

	agg := New(testConfig(), []crawler.Adapter{flaky, institutionalOK()}, nil, market.NewCalendar(nil))
	rec, err := agg.Collect(context.Background(), "20260828")
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if flaky.calls != 3 {
		t.Errorf("Expected 3 fetch attempts, got %d", flaky.calls)
	}
	if rec.Taiex == nil {
		t.Error("Expected taiex section after retries")
	}
}

func TestCollectDoesNotRetryPermanent(t *testing.T) {
	broken := &fakeAdapter{
		section: market.SectionTaiex,
		err:     &crawler.FetchError{Section: market.SectionTaiex, Reason: crawler.ReasonSchemaDrift, Msg: "layout changed"},
	}

	agg := New(testConfig(), []crawler.Adapter{broken, institutionalOK()}, nil, market.NewCalendar(nil))
	agg.Collect(context.Background(), "20260828")

	if broken.calls != 1 {
		t.Errorf("Permanent failure fetched %d times, want 1", broken.calls)
	}
}

func TestCollectEnrichesFromPreviousSession(t *testing.T) {
	prev := &fakeSource{records: map[market.TradeDate]*market.ChipRecord{
		"20260827": {
			TradeDate:     "20260827",
			Taiex:         &market.Taiex{Close: 23938, TurnoverYi: 4000},
			Institutional: &market.Institutional{ForeignNet: 100, TrustNet: -5, DealerNet: -3, ForeignDays: 2, TrustDays: -1, DealerDays: -4},
			InstFutures:   &market.InstFutures{ForeignTXNet: 30000, ForeignMTXNet: -5000},
			TopTraders:    &market.TopTraders{Top10Net: 10000, SpecificNet: 8000},
			Options:       &market.Options{ForeignCallNet: 17000, ForeignPutNet: -6000},
			VIX:           &market.VIX{Close: 19.0},
			Retail:        &market.Retail{MTXRatio: 10.0, XMTXRatio: 5.0},
		},
	}}

	adapters := []crawler.Adapter{
		taiexOK(),
		institutionalOK(),
		&fakeAdapter{
			section: market.SectionInstFutures,
			result: func(r *market.ChipRecord) {
				r.InstFutures = &market.InstFutures{
					ForeignTXNet: 32000, ForeignMTXNet: -7000,
					InstMTXNet: -12000, MTXOpenInterest: 48000,
					InstXMTXNet: 600, XMTXOI: 12000,
				}
			},
		},
		&fakeAdapter{
			section: market.SectionTopTraders,
			result:  func(r *market.ChipRecord) { r.TopTraders = &market.TopTraders{Top10Net: 12400, SpecificNet: 8800} },
		},
		&fakeAdapter{
			section: market.SectionOptions,
			result:  func(r *market.ChipRecord) { r.Options = &market.Options{ForeignCallNet: 19000, ForeignPutNet: -8000} },
		},
		&fakeAdapter{
			section: market.SectionVIX,
			result:  func(r *market.ChipRecord) { r.VIX = &market.VIX{Close: 18.22} },
		},
	}

	agg := New(testConfig(), adapters, prev, market.NewCalendar(nil))
	rec, err := agg.Collect(context.Background(), "20260828")
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if rec.Taiex.TurnoverChg == nil || *rec.Taiex.TurnoverChg != 321 {
		t.Errorf("TurnoverChg = %v, want 321", rec.Taiex.TurnoverChg)
	}
	if rec.Institutional.ForeignDays != 3 {
		t.Errorf("ForeignDays = %d, want 3 (extends the buy streak)", rec.Institutional.ForeignDays)
	}
	if rec.Institutional.TrustDays != 1 {
		t.Errorf("TrustDays = %d, want 1 (sell streak broken)", rec.Institutional.TrustDays)
	}
	if rec.Institutional.DealerDays != -5 {
		t.Errorf("DealerDays = %d, want -5 (extends the sell streak)", rec.Institutional.DealerDays)
	}
	if rec.InstFutures.ForeignTXChg == nil || *rec.InstFutures.ForeignTXChg != 2000 {
		t.Errorf("ForeignTXChg = %v, want 2000", rec.InstFutures.ForeignTXChg)
	}
	if rec.InstFutures.ForeignMTXChg == nil || *rec.InstFutures.ForeignMTXChg != -2000 {
		t.Errorf("ForeignMTXChg = %v, want -2000", rec.InstFutures.ForeignMTXChg)
	}
	if rec.TopTraders.Top10Chg == nil || *rec.TopTraders.Top10Chg != 2400 {
		t.Errorf("Top10Chg = %v, want 2400", rec.TopTraders.Top10Chg)
	}
	if rec.Options.ForeignCallChg == nil || *rec.Options.ForeignCallChg != 2000 {
		t.Errorf("ForeignCallChg = %v, want 2000", rec.Options.ForeignCallChg)
	}

	wantVIXChg := 18.22 - 19.0
	if rec.VIX.Change == nil {
		t.Fatal("Expected VIX change against the previous session")
	}
	if diff := *rec.VIX.Change - wantVIXChg; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("VIX.Change = %v, want %v", *rec.VIX.Change, wantVIXChg)
	}

	// Retail: -(-12000)/48000*100 = 25.0, change vs 10.0
	if rec.Retail.MTXRatio != 25.0 {
		t.Errorf("MTXRatio = %v, want 25.0", rec.Retail.MTXRatio)
	}
	if rec.Retail.MTXRatioChg == nil || *rec.Retail.MTXRatioChg != 15.0 {
		t.Errorf("MTXRatioChg = %v, want 15.0", rec.Retail.MTXRatioChg)
	}
}

func TestCollectFirstSessionLeavesChangesNil(t *testing.T) {
	adapters := []crawler.Adapter{
		taiexOK(),
		institutionalOK(),
		&fakeAdapter{
			section: market.SectionVIX,
			result:  func(r *market.ChipRecord) { r.VIX = &market.VIX{Close: 18.22} },
		},
	}

	agg := New(testConfig(), adapters, &fakeSource{}, market.NewCalendar(nil))
	rec, err := agg.Collect(context.Background(), "20260828")
	if err != nil {
		t.Fatalf("Collect() failed: %v", err)
	}

	if rec.Taiex.TurnoverChg != nil {
		t.Errorf("TurnoverChg = %v, want nil without a previous session", *rec.Taiex.TurnoverChg)
	}
	if rec.VIX.Change != nil {
		t.Errorf("VIX.Change = %v, want nil without a previous session", *rec.VIX.Change)
	}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		net      float64
		prevDays int
		expected int
	}{
		{10, 2, 3},
		{10, -4, 1},
		{-10, -4, -5},
		{-10, 3, -1},
		{0, 5, 0},
	}

	for _, tt := range tests {
		if got := streak(tt.net, tt.prevDays); got != tt.expected {
			t.Errorf("streak(%v, %d) = %d, want %d", tt.net, tt.prevDays, got, tt.expected)
		}
	}
}
