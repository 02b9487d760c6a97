package crawler

import "testing"

// Mirrors the investor report's rowspan layout: the contract name only
// appears on the first identity row of each block.
const instFuturesHTML = `
<html><body><table class="table_f">
<tr><th>序號</th><th>契約</th><th>身份別</th><th>多方口數</th><th>多方契約金額</th><th>空方口數</th><th>空方契約金額</th><th>多空淨額口數</th><th>多空淨額契約金額</th><th>未平倉多方口數</th><th>未平倉多方契約金額</th><th>未平倉空方口數</th><th>未平倉空方契約金額</th><th>未平倉多空淨額口數</th><th>未平倉多空淨額契約金額</th></tr>
<tr><td>1</td><td>臺股期貨</td><td>自營商</td><td>20,000</td><td>96,000</td><td>21,000</td><td>100,800</td><td>-1,000</td><td>-4,800</td><td>12,000</td><td>57,600</td><td>10,000</td><td>48,000</td><td>2,000</td><td>9,600</td></tr>
<tr><td></td><td></td><td>投信</td><td>3,000</td><td>14,400</td><td>2,500</td><td>12,000</td><td>500</td><td>2,400</td><td>9,000</td><td>43,200</td><td>15,000</td><td>72,000</td><td>-6,000</td><td>-28,800</td></tr>
<tr><td></td><td></td><td>外資</td><td>90,000</td><td>432,000</td><td>85,000</td><td>408,000</td><td>5,000</td><td>24,000</td><td>60,000</td><td>288,000</td><td>28,000</td><td>134,400</td><td>32,000</td><td>153,600</td></tr>
<tr><td>2</td><td>小型臺指期貨</td><td>自營商</td><td>15,000</td><td>18,000</td><td>14,000</td><td>16,800</td><td>1,000</td><td>1,200</td><td>8,000</td><td>9,600</td><td>12,000</td><td>14,400</td><td>-4,000</td><td>-4,800</td></tr>
<tr><td></td><td></td><td>投信</td><td>500</td><td>600</td><td>700</td><td>840</td><td>-200</td><td>-240</td><td>1,000</td><td>1,200</td><td>2,000</td><td>2,400</td><td>-1,000</td><td>-1,200</td></tr>
<tr><td></td><td></td><td>外資</td><td>60,000</td><td>72,000</td><td>62,000</td><td>74,400</td><td>-2,000</td><td>-2,400</td><td>20,000</td><td>24,000</td><td>27,000</td><td>32,400</td><td>-7,000</td><td>-8,400</td></tr>
<tr><td>3</td><td>微型臺指期貨</td><td>自營商</td><td>100</td><td>12</td><td>90</td><td>11</td><td>10</td><td>1</td><td>400</td><td>48</td><td>300</td><td>36</td><td>100</td><td>12</td></tr>
<tr><td></td><td></td><td>投信</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td><td>0</td></tr>
<tr><td></td><td></td><td>外資</td><td>2,000</td><td>240</td><td>1,500</td><td>180</td><td>500</td><td>60</td><td>3,000</td><td>360</td><td>2,500</td><td>300</td><td>500</td><td>60</td></tr>
</table></body></html>`

func TestParseInstFutures(t *testing.T) {
	inst, err := parseInstFutures([]byte(instFuturesHTML))
	if err != nil {
		t.Fatalf("parseInstFutures() failed: %v", err)
	}

	if inst.ForeignTXNet != 32000 {
		t.Errorf("ForeignTXNet = %d, want 32000", inst.ForeignTXNet)
	}
	if inst.DealerTXNet != 2000 {
		t.Errorf("DealerTXNet = %d, want 2000", inst.DealerTXNet)
	}
	if inst.TrustTXNet != -6000 {
		t.Errorf("TrustTXNet = %d, want -6000", inst.TrustTXNet)
	}
	if inst.ForeignMTXNet != -7000 {
		t.Errorf("ForeignMTXNet = %d, want -7000", inst.ForeignMTXNet)
	}

	// MTX combined: -4000 + -1000 + -7000
	if inst.InstMTXNet != -12000 {
		t.Errorf("InstMTXNet = %d, want -12000", inst.InstMTXNet)
	}
	// XMTX combined: 100 + 0 + 500
	if inst.InstXMTXNet != 600 {
		t.Errorf("InstXMTXNet = %d, want 600", inst.InstXMTXNet)
	}
}

func TestParseInstFuturesEmpty(t *testing.T) {
	_, err := parseInstFutures([]byte(`<html><body><table class="table_f"><tr><td>查無資料</td></tr></table></body></html>`))
	if err == nil || err.Reason != ReasonSchemaDrift {
		t.Fatalf("Expected schema drift error, got %v", err)
	}
}
