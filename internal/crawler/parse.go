package crawler

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// decodeText returns body as UTF-8. TAIFEX still serves some downloads
// in Big5 without declaring it, so invalid UTF-8 gets one decode pass.
func decodeText(body []byte) string {
	if utf8.Valid(body) {
		return string(body)
	}
	decoded, _, err := transform.Bytes(traditionalchinese.Big5.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// cleanNumber strips thousands separators and whitespace. Exchange
// tables use full-width spaces and "--" placeholders.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	if s == "-" || s == "--" || s == "—" {
		return ""
	}
	return s
}

func parseFloat(s string) (float64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseSigned parses a change cell that carries its sign as ▲/▼ markers
// or a leading +/-. An empty or dash cell parses as zero.
func parseSigned(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	sign := 1.0
	switch {
	case strings.Contains(s, "▼"):
		sign = -1
		s = strings.ReplaceAll(s, "▼", "")
	case strings.Contains(s, "▲"):
		s = strings.ReplaceAll(s, "▲", "")
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = strings.TrimPrefix(s, "-")
	case strings.HasPrefix(s, "+"):
		s = strings.TrimPrefix(s, "+")
	}
	v, ok := parseFloat(s)
	if !ok {
		if cleanNumber(s) == "" {
			return 0, true
		}
		return 0, false
	}
	return sign * v, true
}

// htmlReader wraps a fetched body so goquery parses decoded UTF-8.
func htmlReader(body []byte) *bytes.Reader {
	return bytes.NewReader([]byte(decodeText(body)))
}
