package report

import (
	"fmt"
	"strings"

	"github.com/weichenlin/twchip/internal/market"
)

// View selects which part of the record a formatted report covers.
type View string

const (
	ViewFull          View = "full"
	ViewTaiex         View = "taiex"
	ViewInstitutional View = "institutional"
	ViewFutures       View = "futures"
	ViewRetail        View = "retail"
)

// AllViews lists the selectable report views.
var AllViews = []View{ViewFull, ViewTaiex, ViewInstitutional, ViewFutures, ViewRetail}

// ValidView reports whether v names a known view.
func ValidView(v View) bool {
	for _, view := range AllViews {
		if view == v {
			return true
		}
	}
	return false
}

const missingData = "(資料暫缺)"

// Format renders the record as the requested report text. Sections the
// record is missing render a placeholder so the reader can tell a
// source failure from a zero.
func Format(rec *market.ChipRecord, view View) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 [盤後籌碼快報] %s\n", rec.TradeDate.Display())

	switch view {
	case ViewTaiex:
		writeTaiex(&b, rec)
		writeFuturesPrice(&b, rec)
	case ViewInstitutional:
		writeInstitutional(&b, rec)
	case ViewFutures:
		writeFuturesPositions(&b, rec)
	case ViewRetail:
		writeRetail(&b, rec)
		writeIndicators(&b, rec)
	default:
		writeTaiex(&b, rec)
		writeFuturesPrice(&b, rec)
		writeInstitutional(&b, rec)
		writeFuturesPositions(&b, rec)
		writeRetail(&b, rec)
		writeIndicators(&b, rec)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeTaiex(b *strings.Builder, rec *market.ChipRecord) {
	b.WriteString("\n📈 加權指數\n")
	if rec.Taiex == nil {
		b.WriteString(missingData + "\n")
		return
	}
	t := rec.Taiex
	fmt.Fprintf(b, "%s %s (%.2f%%) 成交金額: %s億元", comma(t.Close, 2), arrow(t.Change, 2), abs(t.ChangePct), comma(t.TurnoverYi, 2))
	if t.TurnoverChg != nil {
		fmt.Fprintf(b, " (%s億)", signed(*t.TurnoverChg, 2))
	}
	b.WriteString("\n")
}

func writeFuturesPrice(b *strings.Builder, rec *market.ChipRecord) {
	b.WriteString("\n📉 台指期(近月)\n")
	if rec.Futures == nil {
		b.WriteString(missingData + "\n")
		return
	}
	f := rec.Futures
	fmt.Fprintf(b, "%s %s (%.2f%%) 現貨與期貨差: %s\n",
		comma(f.Close, 0), arrow(f.Change, 0), abs(f.ChangePct), comma(f.Basis, 2))
}

func writeInstitutional(b *strings.Builder, rec *market.ChipRecord) {
	b.WriteString("\n👥 三大法人買賣超\n")
	if rec.Institutional == nil {
		b.WriteString(missingData + "\n")
		return
	}
	i := rec.Institutional
	fmt.Fprintf(b, "三大法人合計: %s億元\n", signed(i.TotalNet, 2))
	fmt.Fprintf(b, "外資買賣超: %s億元%s\n", signed(i.ForeignNet, 2), streakNote(i.ForeignDays))
	fmt.Fprintf(b, "投信買賣超: %s億元%s\n", signed(i.TrustNet, 2), streakNote(i.TrustDays))
	fmt.Fprintf(b, "自營商買賣超: %s億元%s\n", signed(i.DealerNet, 2), streakNote(i.DealerDays))
	fmt.Fprintf(b, "  自營商(自行): %s億元\n", signed(i.DealerSelfNet, 2))
	fmt.Fprintf(b, "  自營商(避險): %s億元\n", signed(i.DealerHedgeNet, 2))
}

func writeFuturesPositions(b *strings.Builder, rec *market.ChipRecord) {
	b.WriteString("\n🔄 期貨籌碼\n")
	if rec.InstFutures == nil && rec.Options == nil && rec.TopTraders == nil {
		b.WriteString(missingData + "\n")
		return
	}

	if f := rec.InstFutures; f != nil {
		fmt.Fprintf(b, "外資台指淨未平倉(口): %s%s\n", signedInt(f.ForeignTXNet), chgNote(f.ForeignTXChg))
		fmt.Fprintf(b, "外資小台指淨未平倉(口): %s%s\n", signedInt(f.ForeignMTXNet), chgNote(f.ForeignMTXChg))
	} else {
		fmt.Fprintf(b, "外資期貨部位: %s\n", missingData)
	}

	if o := rec.Options; o != nil {
		fmt.Fprintf(b, "外資買權淨未平倉(口): %s%s\n", signedInt(o.ForeignCallNet), chgNote(o.ForeignCallChg))
		fmt.Fprintf(b, "外資賣權淨未平倉(口): %s%s\n", signedInt(o.ForeignPutNet), chgNote(o.ForeignPutChg))
	} else {
		fmt.Fprintf(b, "外資選擇權部位: %s\n", missingData)
	}

	if t := rec.TopTraders; t != nil {
		fmt.Fprintf(b, "十大交易人淨未平倉(口): %s%s\n", signedInt(t.Top10Net), chgNote(t.Top10Chg))
		fmt.Fprintf(b, "十大特定法人淨未平倉(口): %s%s\n", signedInt(t.SpecificNet), chgNote(t.SpecificChg))
	} else {
		fmt.Fprintf(b, "十大交易人部位: %s\n", missingData)
	}
}

func writeRetail(b *strings.Builder, rec *market.ChipRecord) {
	b.WriteString("\n🏠 散戶指標\n")
	if rec.Retail == nil {
		b.WriteString(missingData + "\n")
		return
	}
	r := rec.Retail
	fmt.Fprintf(b, "小台散戶多空比: %.2f%%%s\n", r.MTXRatio, prevPctNote(r.MTXRatio, r.MTXRatioChg))
	fmt.Fprintf(b, "微台散戶多空比: %.2f%%%s\n", r.XMTXRatio, prevPctNote(r.XMTXRatio, r.XMTXRatioChg))
}

func writeIndicators(b *strings.Builder, rec *market.ChipRecord) {
	b.WriteString("\n📊 市場指標\n")
	if rec.PCRatio == nil && rec.VIX == nil {
		b.WriteString(missingData + "\n")
		return
	}

	if pc := rec.PCRatio; pc != nil {
		fmt.Fprintf(b, "Put/Call Ratio(未平倉): %.2f%%%s\n", pc.OIRatio, prevPctNote(pc.OIRatio, pc.OIRatioChg))
		fmt.Fprintf(b, "Put/Call Ratio(成交量): %.2f%%\n", pc.VolumeRatio)
	} else {
		fmt.Fprintf(b, "Put/Call Ratio: %s\n", missingData)
	}

	if v := rec.VIX; v != nil {
		fmt.Fprintf(b, "VIX指標: %.2f%s\n", v.Close, prevNote(v.Close, v.Change))
	} else {
		fmt.Fprintf(b, "VIX指標: %s\n", missingData)
	}
}

// arrow renders a signed change with the ▲/▼ markers the report uses.
func arrow(v float64, decimals int) string {
	switch {
	case v > 0:
		return "▲" + comma(v, decimals)
	case v < 0:
		return "▼" + comma(-v, decimals)
	default:
		return "—"
	}
}

func streakNote(days int) string {
	switch {
	case days > 1:
		return fmt.Sprintf(" (連%d天買超)", days)
	case days < -1:
		return fmt.Sprintf(" (連%d天賣超)", -days)
	default:
		return ""
	}
}

// The comparison notes render only when a previous session exists; a
// nil change means there was nothing to compare against, not a flat day.
func chgNote(chg *int64) string {
	if chg == nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", signedInt(*chg))
}

func prevNote(cur float64, chg *float64) string {
	if chg == nil {
		return ""
	}
	return fmt.Sprintf(" (前日 %.2f)", cur-*chg)
}

func prevPctNote(cur float64, chg *float64) string {
	if chg == nil {
		return ""
	}
	return fmt.Sprintf(" (前日 %.2f%%)", cur-*chg)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// comma formats v with thousands separators.
func comma(v float64, decimals int) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.*f", decimals, v)

	intPart := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, frac = s[:idx], s[idx:]
	}

	var out strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(d)
	}

	result := out.String() + frac
	if neg {
		return "-" + result
	}
	return result
}

// signed formats v with an explicit plus for net-buy values.
func signed(v float64, decimals int) string {
	if v > 0 {
		return "+" + comma(v, decimals)
	}
	return comma(v, decimals)
}

func signedInt(v int64) string {
	if v > 0 {
		return "+" + comma(float64(v), 0)
	}
	return comma(float64(v), 0)
}
