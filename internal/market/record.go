package market

import "time"

// Section identifies one independently scraped block of the daily report.
type Section string

const (
	SectionTaiex         Section = "taiex"
	SectionFutures       Section = "futures"
	SectionInstitutional Section = "institutional"
	SectionInstFutures   Section = "instfutures"
	SectionTopTraders    Section = "toptraders"
	SectionOptions       Section = "options"
	SectionPCRatio       Section = "pcratio"
	SectionVIX           Section = "vix"
)

// AllSections lists every section in report order.
var AllSections = []Section{
	SectionTaiex,
	SectionFutures,
	SectionInstitutional,
	SectionInstFutures,
	SectionTopTraders,
	SectionOptions,
	SectionPCRatio,
	SectionVIX,
}

// ValidSection reports whether s names a known section.
func ValidSection(s Section) bool {
	for _, sec := range AllSections {
		if sec == s {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v. The session-over-session change fields
// are pointers so a missing previous record reads differently from a
// genuinely flat day.
func Ptr[T any](v T) *T { return &v }

// Taiex holds the weighted index close and daily turnover.
type Taiex struct {
	Close       float64  `json:"close"`
	Change      float64  `json:"change"`      // signed points vs previous close
	ChangePct   float64  `json:"change_pct"`  // signed percent vs previous close
	TurnoverYi  float64  `json:"turnover_yi"` // market turnover in 億 TWD
	TurnoverChg *float64 `json:"turnover_chg,omitempty"`
}

// Futures holds the TX front-month close from the afternoon session report.
type Futures struct {
	Close     float64 `json:"close"`
	Change    float64 `json:"change"`     // signed points
	ChangePct float64 `json:"change_pct"` // signed percent
	Basis     float64 `json:"basis"`      // futures close minus spot close
}

// Institutional holds the three institutional groups' net buy/sell in
// the spot market, in 億 TWD. Dealer combines proprietary and hedge books.
type Institutional struct {
	DealerSelfNet  float64 `json:"dealer_self_net"`
	DealerHedgeNet float64 `json:"dealer_hedge_net"`
	DealerNet      float64 `json:"dealer_net"`
	TrustNet       float64 `json:"trust_net"`
	ForeignNet     float64 `json:"foreign_net"`
	TotalNet       float64 `json:"total_net"`

	// Streaks count sessions each group kept the same sign, including
	// this one. Positive streaks are net buying, negative net selling.
	ForeignDays int `json:"foreign_days,omitempty"`
	TrustDays   int `json:"trust_days,omitempty"`
	DealerDays  int `json:"dealer_days,omitempty"`
}

// InstFutures holds foreign net open interest in TX and MTX contracts.
type InstFutures struct {
	ForeignTXNet    int64  `json:"foreign_tx_net"`
	ForeignTXChg    *int64 `json:"foreign_tx_chg,omitempty"`
	ForeignMTXNet   int64  `json:"foreign_mtx_net"`
	ForeignMTXChg   *int64 `json:"foreign_mtx_chg,omitempty"`
	DealerTXNet     int64  `json:"dealer_tx_net"`
	TrustTXNet      int64  `json:"trust_tx_net"`
	InstMTXNet      int64  `json:"inst_mtx_net"`  // all three groups combined, MTX
	InstXMTXNet     int64  `json:"inst_xmtx_net"` // all three groups combined, XMTX
	MTXOpenInterest int64  `json:"mtx_oi"`
	XMTXOI          int64  `json:"xmtx_oi"`
}

// TopTraders holds the ten largest traders' front-month TX positions,
// with the ten largest specific institutions broken out.
type TopTraders struct {
	Top10Long     int64  `json:"top10_long"`
	Top10Short    int64  `json:"top10_short"`
	Top10Net      int64  `json:"top10_net"`
	Top10Chg      *int64 `json:"top10_chg,omitempty"`
	SpecificLong  int64  `json:"specific_long"`
	SpecificShort int64  `json:"specific_short"`
	SpecificNet   int64  `json:"specific_net"`
	SpecificChg   *int64 `json:"specific_chg,omitempty"`
}

// Options holds foreign net value positions in TXO calls and puts,
// in thousand TWD as published.
type Options struct {
	ForeignCallNet int64  `json:"foreign_call_net"`
	ForeignCallChg *int64 `json:"foreign_call_chg,omitempty"`
	ForeignPutNet  int64  `json:"foreign_put_net"`
	ForeignPutChg  *int64 `json:"foreign_put_chg,omitempty"`
}

// PCRatio holds the TXO put/call ratios in percent.
type PCRatio struct {
	VolumeRatio float64  `json:"volume_ratio"`
	OIRatio     float64  `json:"oi_ratio"`
	OIRatioChg  *float64 `json:"oi_ratio_chg,omitempty"`
}

// VIX holds the closing value of the TAIFEX volatility index.
type VIX struct {
	Close  float64  `json:"close"`
	Change *float64 `json:"change,omitempty"`
}

// Retail holds derived small-contract retail positioning indicators,
// in percent of open interest. Computed from InstFutures, never scraped.
type Retail struct {
	MTXRatio     float64  `json:"mtx_ratio"`
	MTXRatioChg  *float64 `json:"mtx_ratio_chg,omitempty"`
	XMTXRatio    float64  `json:"xmtx_ratio"`
	XMTXRatioChg *float64 `json:"xmtx_ratio_chg,omitempty"`
}

// ChipRecord is the complete per-date market positioning snapshot.
// Section pointers are nil when that source failed or returned nothing;
// the Diagnostics map carries the failure reason keyed by section.
type ChipRecord struct {
	TradeDate TradeDate `json:"trade_date"`

	Taiex         *Taiex         `json:"taiex,omitempty"`
	Futures       *Futures       `json:"futures,omitempty"`
	Institutional *Institutional `json:"institutional,omitempty"`
	InstFutures   *InstFutures   `json:"inst_futures,omitempty"`
	TopTraders    *TopTraders    `json:"top_traders,omitempty"`
	Options       *Options       `json:"options,omitempty"`
	PCRatio       *PCRatio       `json:"pc_ratio,omitempty"`
	VIX           *VIX           `json:"vix,omitempty"`
	Retail        *Retail        `json:"retail,omitempty"`

	Diagnostics map[Section]string `json:"diagnostics,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Pushed    bool       `json:"pushed"`
	PushedAt  *time.Time `json:"pushed_at,omitempty"`
}

// Has reports whether the record carries data for the given section.
func (r *ChipRecord) Has(s Section) bool {
	switch s {
	case SectionTaiex:
		return r.Taiex != nil
	case SectionFutures:
		return r.Futures != nil
	case SectionInstitutional:
		return r.Institutional != nil
	case SectionInstFutures:
		return r.InstFutures != nil
	case SectionTopTraders:
		return r.TopTraders != nil
	case SectionOptions:
		return r.Options != nil
	case SectionPCRatio:
		return r.PCRatio != nil
	case SectionVIX:
		return r.VIX != nil
	default:
		return false
	}
}

// Sections returns the sections present on the record, in report order.
func (r *ChipRecord) Sections() []Section {
	var out []Section
	for _, s := range AllSections {
		if r.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Complete reports whether every section is present.
func (r *ChipRecord) Complete() bool {
	return len(r.Sections()) == len(AllSections)
}

// RetailRatio computes the retail positioning indicator in percent:
// the negated combined institutional net position over open interest.
// Returns 0 when open interest is zero.
func RetailRatio(instNet, openInterest int64) float64 {
	if openInterest == 0 {
		return 0
	}
	return -float64(instNet) / float64(openInterest) * 100
}
