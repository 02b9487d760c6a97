package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weichenlin/twchip/internal/aggregator"
	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/report"
)

type fakeCollector struct {
	rec   *market.ChipRecord
	err   error
	calls int
}

func (f *fakeCollector) Collect(_ context.Context, date market.TradeDate) (*market.ChipRecord, error) {
	f.calls++
	if f.rec != nil {
		f.rec.TradeDate = date
	}
	return f.rec, f.err
}

type fakeStore struct {
	records  map[market.TradeDate]*market.ChipRecord
	upserted []market.TradeDate
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[market.TradeDate]*market.ChipRecord)}
}

func (f *fakeStore) GetByDate(_ context.Context, date market.TradeDate) (*market.ChipRecord, error) {
	rec, ok := f.records[date]
	if !ok {
		return nil, report.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) Upsert(_ context.Context, rec *market.ChipRecord) error {
	f.records[rec.TradeDate] = rec
	f.upserted = append(f.upserted, rec.TradeDate)
	return nil
}

type fakePusher struct {
	pushed []market.TradeDate
	err    error
}

func (f *fakePusher) PushRecord(_ context.Context, rec *market.ChipRecord, _ report.View) error {
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, rec.TradeDate)
	return nil
}

func goodRecord() *market.ChipRecord {
	return &market.ChipRecord{
		Taiex:         &market.Taiex{Close: 24100.52},
		Institutional: &market.Institutional{TotalNet: 255.05},
	}
}

// fridayAfternoon is a trading day after the 15:00 cutoff.
var fridayAfternoon = time.Date(2026, 8, 28, 15, 30, 0, 0, market.Location())

func testJob(collector *fakeCollector, store *fakeStore, pusher *fakePusher, holidays ...string) *DailyReport {
	var p Pusher
	if pusher != nil {
		p = pusher
	}
	j := NewDailyReport(collector, store, p, market.NewCalendar(holidays), "0 0 15 * * MON-FRI")
	j.now = func() time.Time { return fridayAfternoon }
	return j
}

func TestRunCollectsPersistsPushes(t *testing.T) {
	collector := &fakeCollector{rec: goodRecord()}
	store := newFakeStore()
	pusher := &fakePusher{}
	j := testJob(collector, store, pusher)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := market.TradeDate("20260828")
	if len(store.upserted) != 1 || store.upserted[0] != want {
		t.Errorf("Expected upsert for %s, got %v", want, store.upserted)
	}
	if len(pusher.pushed) != 1 || pusher.pushed[0] != want {
		t.Errorf("Expected push for %s, got %v", want, pusher.pushed)
	}
}

func TestRunSkipsNonTradingDay(t *testing.T) {
	collector := &fakeCollector{rec: goodRecord()}
	store := newFakeStore()
	j := testJob(collector, store, &fakePusher{}, "20260828")

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if collector.calls != 0 {
		t.Errorf("Expected no collection on holiday, got %d calls", collector.calls)
	}
}

func TestRunSkipsAlreadyPushed(t *testing.T) {
	collector := &fakeCollector{rec: goodRecord()}
	store := newFakeStore()
	store.records["20260828"] = &market.ChipRecord{TradeDate: "20260828", Pushed: true}
	j := testJob(collector, store, &fakePusher{})

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if collector.calls != 0 {
		t.Errorf("Expected no collection when already pushed, got %d calls", collector.calls)
	}
}

func TestRunRecollectsUnpushedRecord(t *testing.T) {
	collector := &fakeCollector{rec: goodRecord()}
	store := newFakeStore()
	store.records["20260828"] = &market.ChipRecord{TradeDate: "20260828"}
	pusher := &fakePusher{}
	j := testJob(collector, store, pusher)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if collector.calls != 1 {
		t.Errorf("Expected recollection of unpushed record, got %d calls", collector.calls)
	}
	if len(pusher.pushed) != 1 {
		t.Errorf("Expected push after recollection, got %v", pusher.pushed)
	}
}

func TestRunWithholdsPushBelowUsability(t *testing.T) {
	partial := &market.ChipRecord{Taiex: &market.Taiex{Close: 24100.52}}
	collector := &fakeCollector{
		rec: partial,
		err: &aggregator.UsabilityError{Missing: []market.Section{market.SectionInstitutional}},
	}
	store := newFakeStore()
	pusher := &fakePusher{}
	j := testJob(collector, store, pusher)

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Expected usability failure to be absorbed, got %v", err)
	}
	if len(store.upserted) != 1 {
		t.Error("Expected partial record to be persisted")
	}
	if len(pusher.pushed) != 0 {
		t.Errorf("Expected push withheld, got %v", pusher.pushed)
	}
}

func TestRunPropagatesCollectFailure(t *testing.T) {
	collector := &fakeCollector{err: errors.New("all sources down")}
	store := newFakeStore()
	j := testJob(collector, store, &fakePusher{})

	if err := j.Run(context.Background()); err == nil {
		t.Error("Expected hard collect failure to surface")
	}
	if len(store.upserted) != 0 {
		t.Error("Expected nothing persisted on hard failure")
	}
}

func TestRunPropagatesPushFailure(t *testing.T) {
	collector := &fakeCollector{rec: goodRecord()}
	store := newFakeStore()
	pusher := &fakePusher{err: errors.New("telegram down")}
	j := testJob(collector, store, pusher)

	err := j.Run(context.Background())
	if err == nil {
		t.Fatal("Expected push failure to surface")
	}
	if len(store.upserted) != 1 {
		t.Error("Expected record persisted before push attempt")
	}
}

func TestRunForBackfillWithoutPush(t *testing.T) {
	collector := &fakeCollector{rec: goodRecord()}
	store := newFakeStore()
	pusher := &fakePusher{}
	j := testJob(collector, store, pusher)

	date := market.TradeDate("20260820")
	if err := j.RunFor(context.Background(), date, false); err != nil {
		t.Fatalf("RunFor failed: %v", err)
	}
	if len(store.upserted) != 1 || store.upserted[0] != date {
		t.Errorf("Expected backfill upsert for %s, got %v", date, store.upserted)
	}
	if len(pusher.pushed) != 0 {
		t.Errorf("Expected no push during backfill, got %v", pusher.pushed)
	}
}
