package crawler

import "testing"

const institutionalHTML = `
<html><body><table>
<tr><th>單位名稱</th><th>買進金額</th><th>賣出金額</th><th>買賣差額</th></tr>
<tr><td>自營商(自行買賣)</td><td>5,000,000,000</td><td>3,000,000,000</td><td>2,000,000,000</td></tr>
<tr><td>自營商(避險)</td><td>12,000,000,000</td><td>15,500,000,000</td><td>-3,500,000,000</td></tr>
<tr><td>投信</td><td>9,100,000,000</td><td>4,100,000,000</td><td>5,000,000,000</td></tr>
<tr><td>外資及陸資(不含外資自營商)</td><td>120,000,000,000</td><td>98,000,000,000</td><td>22,000,000,000</td></tr>
<tr><td>外資自營商</td><td>10,000,000</td><td>5,000,000</td><td>5,000,000</td></tr>
<tr><td>合計</td><td>146,110,000,000</td><td>120,605,000,000</td><td>25,505,000,000</td></tr>
</table></body></html>`

func TestParseInstitutional(t *testing.T) {
	inst, err := parseInstitutional([]byte(institutionalHTML))
	if err != nil {
		t.Fatalf("parseInstitutional() failed: %v", err)
	}

	if inst.DealerSelfNet != 20.0 {
		t.Errorf("DealerSelfNet = %v, want 20", inst.DealerSelfNet)
	}
	if inst.DealerHedgeNet != -35.0 {
		t.Errorf("DealerHedgeNet = %v, want -35", inst.DealerHedgeNet)
	}
	if inst.DealerNet != -15.0 {
		t.Errorf("DealerNet = %v, want -15", inst.DealerNet)
	}
	if inst.TrustNet != 50.0 {
		t.Errorf("TrustNet = %v, want 50", inst.TrustNet)
	}
	if inst.ForeignNet != 220.0 {
		t.Errorf("ForeignNet = %v, want 220 (must skip 外資自營商 row)", inst.ForeignNet)
	}
	if inst.TotalNet != 255.05 {
		t.Errorf("TotalNet = %v, want 255.05", inst.TotalNet)
	}
}

func TestParseInstitutionalSchemaDrift(t *testing.T) {
	_, err := parseInstitutional([]byte(`<html><body><table><tr><td>未知類別</td><td>1</td><td>2</td><td>3</td></tr></table></body></html>`))
	if err == nil || err.Reason != ReasonSchemaDrift {
		t.Fatalf("Expected schema drift error, got %v", err)
	}
}
