package market

import (
	"errors"
	"testing"
	"time"
)

func TestParseTradeDate(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"20260828", false},
		{"20260229", true}, // not a leap year
		{"2026-08-28", true},
		{"notadate", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := ParseTradeDate(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTradeDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestTradeDateFormats(t *testing.T) {
	d := TradeDate("20260828")

	if d.Slash() != "2026/08/28" {
		t.Errorf("Slash() = %s, want 2026/08/28", d.Slash())
	}
	if d.Dash() != "2026-08-28" {
		t.Errorf("Dash() = %s, want 2026-08-28", d.Dash())
	}
	// 2026-08-28 is a Friday
	if d.Display() != "2026/08/28 (週五)" {
		t.Errorf("Display() = %s", d.Display())
	}
}

func TestIsTradingDay(t *testing.T) {
	cal := NewCalendar([]string{"20260101"})

	tests := []struct {
		date     TradeDate
		expected bool
	}{
		{"20260828", true},  // Friday
		{"20260829", false}, // Saturday
		{"20260830", false}, // Sunday
		{"20260101", false}, // configured holiday (also a Thursday)
		{"20260102", true},  // Friday after the holiday
	}

	for _, tt := range tests {
		if got := cal.IsTradingDay(tt.date); got != tt.expected {
			t.Errorf("IsTradingDay(%s) = %v, want %v", tt.date, got, tt.expected)
		}
	}
}

func TestLatestTradeDate(t *testing.T) {
	cal := NewCalendar(nil)
	loc, _ := time.LoadLocation("Asia/Taipei")

	tests := []struct {
		name     string
		now      time.Time
		expected TradeDate
	}{
		{
			name:     "friday after cutoff",
			now:      time.Date(2026, 8, 28, 16, 0, 0, 0, loc),
			expected: "20260828",
		},
		{
			name:     "friday before cutoff",
			now:      time.Date(2026, 8, 28, 10, 30, 0, 0, loc),
			expected: "20260827",
		},
		{
			name:     "saturday",
			now:      time.Date(2026, 8, 29, 12, 0, 0, 0, loc),
			expected: "20260828",
		},
		{
			name:     "sunday evening",
			now:      time.Date(2026, 8, 30, 20, 0, 0, 0, loc),
			expected: "20260828",
		},
		{
			name:     "monday at exactly 15:00",
			now:      time.Date(2026, 8, 31, 15, 0, 0, 0, loc),
			expected: "20260831",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.LatestTradeDate(tt.now); got != tt.expected {
				t.Errorf("LatestTradeDate() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestPrevTradingDaySkipsWeekendAndHoliday(t *testing.T) {
	// 2026-01-01 (Thursday) is a holiday, so the trading day before
	// Friday 2026-01-02 is Wednesday 2025-12-31.
	cal := NewCalendar([]string{"20260101"})

	if got := cal.PrevTradingDay("20260102"); got != "20251231" {
		t.Errorf("PrevTradingDay(20260102) = %s, want 20251231", got)
	}

	// Monday reaches back across the weekend.
	if got := cal.PrevTradingDay("20260831"); got != "20260828" {
		t.Errorf("PrevTradingDay(20260831) = %s, want 20260828", got)
	}
}

func TestValidate(t *testing.T) {
	cal := NewCalendar(nil)

	if err := cal.Validate("20260828"); err != nil {
		t.Errorf("Validate(weekday) = %v, want nil", err)
	}

	err := cal.Validate("20260829")
	if !errors.Is(err, ErrNoTradingDay) {
		t.Errorf("Validate(saturday) = %v, want ErrNoTradingDay", err)
	}
}
